package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves prompt templates from user-editable files, one
// <name>.txt per template, falling back to the built-in templates.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts are the built-in templates, also used to seed the directory.
var defaultPrompts = map[string]string{
	driven.PromptAnswer: `<start_of_turn>user
提供されたScrapboxの情報のみに基づいて、質問に答えてください。
回答は日本語で、根拠となった情報のタイトルとURLを含めてください。

情報:
%s

質問: %s<end_of_turn>
<start_of_turn>model`,
}

// DefaultPrompt returns the embedded default for name.
func DefaultPrompt(name string) (string, bool) {
	p, ok := defaultPrompts[name]
	return p, ok
}

// promptsReadme is written next to the seeded prompt files.
const promptsReadme = `# scrapbox-rag Prompts

Prompt templates sent to the language model when answering questions.

- answer.txt wraps the retrieved Scrapbox contexts and the question. It takes
  two Go fmt %s placeholders, in order: the context block, then the question.
  Keep both; a template without exactly two is ignored in favour of the
  built-in one.

Changes are picked up after a restart, or on the next "scrapbox-rag ask" run.
An empty file also falls back to the built-in template.
`

// NewPromptStore creates a store over promptDir, ~/.scrapbox-rag/prompts
// when empty. No I/O happens until the first Load.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(dir, "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the template for name. The first call seeds the directory
// with the built-in templates. A missing, unreadable or empty file yields
// the built-in template, which is not cached so a later edit is seen
// without Reload.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.seed)
	def, hasDefault := defaultPrompts[name]
	if s.initErr != nil {
		if hasDefault {
			return def, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	data, err := os.ReadFile(s.path(name))
	prompt = strings.TrimSpace(string(data))
	switch {
	case err == nil && prompt != "":
	case hasDefault:
		return def, nil
	case err != nil:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	default:
		return "", fmt.Errorf("load prompt %q: file is empty", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = prompt
	return prompt, nil
}

// Reload drops cached templates so the next Load reads the files again.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.promptDir, name+".txt")
}

// seed creates the directory and writes every built-in template and the
// README that is not already there. User edits are never overwritten.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.promptDir, 0o700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	files := map[string]string{filepath.Join(s.promptDir, "README.md"): promptsReadme}
	for name, content := range defaultPrompts {
		files[s.path(name)] = content
	}
	for path, content := range files {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			s.initErr = fmt.Errorf("seed %s: %w", filepath.Base(path), err)
			return
		}
	}
}
