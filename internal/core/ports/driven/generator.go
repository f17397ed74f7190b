package driven

import "context"

// Generator produces natural-language completions from a prompt.
//
// Implementations may include:
//   - Ollama (gemma3, llama3.2)
//   - OpenAI-compatible chat completion endpoints
//
// Failures are returned as *domain.GenerationError.
type Generator interface {
	// Generate returns the complete answer for a prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStream calls onToken for each partial answer in arrival order
	// and returns when the backend signals completion or the connection
	// ends. If onToken returns an error the stream is abandoned and that
	// error is returned. Cancelling ctx closes the backend connection.
	GenerateStream(ctx context.Context, prompt string, onToken func(token string) error) error

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
