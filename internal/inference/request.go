package inference

// DefaultLength is the reply length used when neither the request nor the
// engine defaults name one.
const DefaultLength = 64

// RequestOptions carries caller overrides; nil fields fall back to defaults.
type RequestOptions struct {
	Prompt string

	Length *int
	Seed   *int64
	Greedy *bool

	EchoPrompt *bool
}

type GenDefaults struct {
	Length *int
	Seed   *int64
}

func ResolveRequest(opts RequestOptions, defaults GenDefaults) Request {
	req := Request{
		Prompt: opts.Prompt,
		Length: DefaultLength,
		Seed:   -1,
	}

	if defaults.Length != nil && *defaults.Length > 0 {
		req.Length = *defaults.Length
	}
	if defaults.Seed != nil {
		req.Seed = *defaults.Seed
	}

	if opts.Length != nil {
		req.Length = *opts.Length
	}
	if opts.Seed != nil {
		req.Seed = *opts.Seed
	}
	if opts.Greedy != nil {
		req.Greedy = *opts.Greedy
	}
	if opts.EchoPrompt != nil {
		req.EchoPrompt = *opts.EchoPrompt
	}

	return req
}
