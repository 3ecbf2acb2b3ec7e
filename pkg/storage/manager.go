package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"fbscraper/pkg/errors"
	"fbscraper/pkg/models"
)

// Dump formats
const (
	DumpRaw    = "raw"
	DumpPretty = "pretty"
	DumpBoth   = "both"
)

const (
	dumpBaseName = "complete"
	reportExt    = ".txt"
)

// Manager lays out the output tree: one folder per conversation holding the
// dumps, the category reports and the downloaded attachments.
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// ConversationDir returns the folder of a conversation: "<id> - <name>" with
// the name folded to ASCII.
func (m *Manager) ConversationDir(conv models.Conversation) string {
	return filepath.Join(m.outputDir, FolderName(conv))
}

// FolderName returns the folder name of a conversation
func FolderName(conv models.Conversation) string {
	name := ASCIIName(conv.Name)
	if name == "" {
		return conv.ID
	}
	return conv.ID + " - " + name
}

var foldASCII = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ASCIIName strips diacritics and replaces whatever is left outside printable
// ASCII, as well as path separators, with underscores
func ASCIIName(s string) string {
	folded, _, err := transform.String(foldASCII, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte('_')
		case r < 0x20 || r > 0x7e:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// PrepareConversation creates the conversation folder and, when subdirs are
// given, one subfolder per name. It returns the folder path.
func (m *Manager) PrepareConversation(conv models.Conversation, subdirs ...string) (string, error) {
	dir := m.ConversationDir(conv)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create conversation directory: %w", err)
	}
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return "", fmt.Errorf("failed to create %s directory: %w", sub, err)
		}
	}
	return dir, nil
}

// WriteReport writes <dir>/<stem>.txt
func (m *Manager) WriteReport(dir, stem, content string) error {
	return writeFileAtomic(filepath.Join(dir, stem+reportExt), []byte(content))
}

// WriteDump writes the messages of a conversation as complete.json,
// complete.pretty.json or both, and returns the written paths
func (m *Manager) WriteDump(dir string, messages []models.Message, format string) ([]string, error) {
	if messages == nil {
		messages = []models.Message{}
	}

	var paths []string
	if format == DumpRaw || format == DumpBoth {
		data, err := json.Marshal(messages)
		if err != nil {
			return nil, fmt.Errorf("failed to encode dump: %w", err)
		}
		path := filepath.Join(dir, dumpBaseName+".json")
		if err := writeFileAtomic(path, data); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	if format == DumpPretty || format == DumpBoth {
		data, err := json.MarshalIndent(messages, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode dump: %w", err)
		}
		path := filepath.Join(dir, dumpBaseName+".pretty.json")
		if err := writeFileAtomic(path, data); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("unknown dump format %q", format)
	}
	return paths, nil
}

// LoadDump reads a dump file. A file that cannot be decoded, or whose first
// record names no conversation, is a malformed input error.
func LoadDump(path string) (string, []models.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, errors.MalformedInput(path, err)
	}

	var messages []models.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return "", nil, errors.MalformedInput(path, err)
	}
	if len(messages) == 0 {
		return "", nil, errors.MalformedInput(path, fmt.Errorf("no messages"))
	}
	id := messages[0].ConversationID()
	if id == "" {
		return "", nil, errors.MalformedInput(path, fmt.Errorf("cannot determine the conversation id"))
	}
	return id, messages, nil
}

// Create opens path for writing through a temporary file. Close moves the
// file into place; Discard drops it.
func (m *Manager) Create(path string) (io.WriteCloser, error) {
	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	return &pendingFile{File: out, final: path}, nil
}

type pendingFile struct {
	*os.File
	final string
	done  bool
}

func (f *pendingFile) Close() error {
	if f.done {
		return nil
	}
	f.done = true
	tmp := f.File.Name()
	if err := f.File.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp, f.final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

func (f *pendingFile) Discard() error {
	if f.done {
		return nil
	}
	f.done = true
	f.File.Close()
	return os.Remove(f.File.Name())
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
