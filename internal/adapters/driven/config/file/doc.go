// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under the scrapbox-rag config directory.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable prompt templates with embedded defaults
package file
