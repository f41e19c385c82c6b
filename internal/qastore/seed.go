package qastore

import "context"

// SeedPair is one canonical Q&A pair shipped with the deployment.
type SeedPair struct {
	Question string
	Answer   string
}

// DefaultSeed is the stock English Q&A set. Several near-duplicate phrasings
// are stored on purpose: STT output is noisy and exact keys are cheap.
var DefaultSeed = []SeedPair{
	{"What is Cultiflow?", "Cultiflow is a technology company in Ghana. We build voice assistants and software."},
	{"What services do you offer?", "We offer voice assistants, IVR systems, and business software solutions."},
	{"Where are you located?", "We are based in Accra, Ghana."},
	{"What is the company name?", "The company name is Cultiflow."},
	{"How can I reach you?", "You can call this number or email info@cultiflow.com."},
	{"Who runs Cultiflow?", "Cultiflow is run by the Cultiflow team."},
	{"What do you do?", "We build voice assistants, IVR systems, and business software."},
	{"what you do", "We build voice assistants, IVR systems, and business software."},
	{"what does you do", "We build voice assistants, IVR systems, and business software."},
	{"what do we do", "We build voice assistants, IVR systems, and business software."},
	{"what does cultiflow do", "We build voice assistants, IVR systems, and business software."},
	{"Where is Cultiflow?", "Cultiflow is based in Ghana."},
	{"How can I contact you?", "Call this number or visit the Cultiflow website."},
}

// ResetAndSeed clears qa_pairs on every reachable backend and re-upserts the
// given set (DefaultSeed when nil) under the given language tag. Returns the
// number of pairs seeded.
func (s *Store) ResetAndSeed(ctx context.Context, language string, seed []SeedPair) (int, error) {
	if seed == nil {
		seed = DefaultSeed
	}
	for _, b := range s.backends() {
		n, err := b.DeleteAll(ctx)
		if err != nil {
			s.log.WithError(err).WithField("backend", b.Name()).Warn("qa store: reset failed")
			continue
		}
		s.log.WithField("backend", b.Name()).WithField("cleared", n).Info("qa store: cleared pairs")
	}
	for _, p := range seed {
		if _, err := s.Upsert(ctx, p.Question, p.Answer, language); err != nil {
			return 0, err
		}
	}
	return len(seed), nil
}
