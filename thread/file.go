package thread

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/vexora/core"
)

// fileMeta is the content of meta.json.
type fileMeta struct {
	core.ThreadInfo
	Metadata map[string]string `json:"metadata,omitempty"`
}

// FileStore persists threads as directories with meta.json + messages.jsonl.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (fs *FileStore) threadDir(id string) string {
	return filepath.Join(fs.baseDir, id)
}

func (fs *FileStore) metaPath(id string) string {
	return filepath.Join(fs.threadDir(id), "meta.json")
}

func (fs *FileStore) messagesPath(id string) string {
	return filepath.Join(fs.threadDir(id), "messages.jsonl")
}

func validID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w %q", core.ErrInvalidThreadID, id)
	}

	return nil
}

// Create returns the thread with id, initialising its directory if needed.
func (fs *FileStore) Create(_ context.Context, id string) (*core.Thread, error) {
	if id == "" {
		id = core.NewThreadID()
	}

	if err := validID(id); err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := fs.ensureLocked(id); err != nil {
		return nil, err
	}

	return fs.loadLocked(id)
}

// Get reads a thread with its full history.
func (fs *FileStore) Get(_ context.Context, id string) (*core.Thread, error) {
	if err := validID(id); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return fs.loadLocked(id)
}

// Append appends a message to the thread's JSONL file and updates meta.
func (fs *FileStore) Append(_ context.Context, threadID string, msg core.Message) error {
	if err := validID(threadID); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	meta, err := fs.ensureLocked(threadID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	f, err := os.OpenFile(fs.messagesPath(threadID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open messages file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	meta.MessageCount++
	meta.Updated = time.Now().UTC()

	return fs.writeMeta(meta)
}

// List returns all threads sorted by last update, newest first.
func (fs *FileStore) List(_ context.Context) ([]core.ThreadInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list threads dir: %w", err)
	}

	var infos []core.ThreadInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := fs.readMeta(entry.Name())
		if err != nil {
			continue // skip corrupted threads
		}
		infos = append(infos, meta.ThreadInfo)
	}

	sortInfos(infos)

	return infos, nil
}

// ensureLocked creates the thread directory and meta.json if missing.
func (fs *FileStore) ensureLocked(id string) (*fileMeta, error) {
	meta, err := fs.readMeta(id)
	if err == nil {
		return meta, nil
	}

	if !os.IsNotExist(err) {
		return nil, err
	}

	if err := os.MkdirAll(fs.threadDir(id), 0o755); err != nil {
		return nil, fmt.Errorf("create thread dir: %w", err)
	}

	now := time.Now().UTC()
	meta = &fileMeta{ThreadInfo: core.ThreadInfo{ID: id, Created: now, Updated: now}}

	if err := fs.writeMeta(meta); err != nil {
		return nil, err
	}

	return meta, nil
}

func (fs *FileStore) loadLocked(id string) (*core.Thread, error) {
	meta, err := fs.readMeta(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrThreadNotFound, id)
		}
		return nil, err
	}

	messages, err := fs.loadMessages(id)
	if err != nil {
		return nil, err
	}

	t := core.NewThread(id)
	t.Created = meta.Created
	t.Updated = meta.Updated
	t.Messages = messages

	for k, v := range meta.Metadata {
		t.Metadata[k] = v
	}

	return t.Bind(fs), nil
}

func (fs *FileStore) loadMessages(id string) ([]core.Message, error) {
	f, err := os.Open(fs.messagesPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return []core.Message{}, nil
		}
		return nil, fmt.Errorf("open messages file: %w", err)
	}
	defer f.Close()

	messages := []core.Message{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg core.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue // skip corrupted lines
		}
		messages = append(messages, msg)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}

	return messages, nil
}

// writeMeta atomically writes meta.json using a temp file + rename.
func (fs *FileStore) writeMeta(meta *fileMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	path := fs.metaPath(meta.ID)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write meta tmp: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename meta: %w", err)
	}

	return nil
}

// readMeta reads a thread's meta.json. Missing files are reported with an
// error satisfying os.IsNotExist.
func (fs *FileStore) readMeta(id string) (*fileMeta, error) {
	data, err := os.ReadFile(fs.metaPath(id))
	if err != nil {
		return nil, err
	}

	var meta fileMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}

	return &meta, nil
}
