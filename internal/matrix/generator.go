package matrix

// Builder describes what a backend and hardware pair can benchmark.
// Supported must be pure and total over the builder's own weights and
// attention variants.
type Builder interface {
	Backend() string
	Hardware() string
	WeightsConfigs(subset string) ([]WeightsConfig, error)
	AttentionVariants() []Attention
	Supported(w WeightsConfig, a Attention) bool
}

// Entry is a cell of the full product with its support verdict.
type Entry struct {
	Job       Job  `json:"job"`
	Supported bool `json:"supported"`
}

// Expand returns the full product models × weights × attention, in input
// order, with each combination marked supported or not.
func Expand(models []string, subset string, b Builder) ([]Entry, error) {
	weights, err := b.WeightsConfigs(subset)
	if err != nil {
		return nil, err
	}
	attentions := b.AttentionVariants()

	entries := make([]Entry, 0, len(models)*len(weights)*len(attentions))
	for _, model := range models {
		for _, w := range weights {
			for _, a := range attentions {
				entries = append(entries, Entry{
					Job: Job{
						Model:     model,
						Weights:   w,
						Attention: a,
						Backend:   b.Backend(),
						Hardware:  b.Hardware(),
						Subset:    subset,
					},
					Supported: b.Supported(w, a),
				})
			}
		}
	}
	return entries, nil
}

// Generate returns the supported jobs only.
func Generate(models []string, subset string, b Builder) ([]Job, error) {
	entries, err := Expand(models, subset, b)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(entries))
	for _, e := range entries {
		if e.Supported {
			jobs = append(jobs, e.Job)
		}
	}
	return jobs, nil
}

// Count returns the number of supported combinations for a single model.
// Generate yields len(models) times this value.
func Count(subset string, b Builder) (int, error) {
	weights, err := b.WeightsConfigs(subset)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, w := range weights {
		for _, a := range b.AttentionVariants() {
			if b.Supported(w, a) {
				n++
			}
		}
	}
	return n, nil
}
