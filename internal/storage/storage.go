// internal/storage/storage.go

// Package storage persists conversations and projects as JSON files under
// the data directory. One file per conversation; writes go through a temp
// file rename so a crash never leaves a half-written document.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Zeetio/llm-council/internal/council"
	"github.com/Zeetio/llm-council/internal/logging"
	"github.com/Zeetio/llm-council/internal/usage"
)

// DefaultProjectID always exists and cannot be deleted.
const DefaultProjectID = "default"

const memoryFileName = "memory.md"

var (
	ErrNotFound         = errors.New("not found")
	ErrProjectProtected = errors.New("default project cannot be deleted")
)

// Project groups conversations and carries an optional memory file.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one entry in a conversation. User messages carry only Content;
// assistant messages carry the full turn record and are immutable once
// appended.
type Message struct {
	Role          string                   `json:"role"`
	Content       string                   `json:"content"`
	Timestamp     time.Time                `json:"timestamp"`
	Stage1        []council.Stage1Result   `json:"stage1,omitempty"`
	Stage1Failed  []council.MemberFailure  `json:"stage1_failures,omitempty"`
	Stage2        []council.Stage2Result   `json:"stage2,omitempty"`
	LabelToMember map[string]string        `json:"label_to_member,omitempty"`
	Aggregate     []council.AggregateEntry `json:"aggregate_rankings,omitempty"`
	Usage         *usage.Totals            `json:"usage,omitempty"`
}

// Conversation is the full persisted document.
type Conversation struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// ConversationMeta is the listing view without message bodies.
type ConversationMeta struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Store is safe for concurrent use. The mutex covers read-modify-write
// cycles on conversation files, not just individual writes.
type Store struct {
	mu   sync.Mutex
	root string
}

// New opens a store rooted at dir, creating the default project if needed.
func New(dir string) (*Store, error) {
	s := &Store{root: dir}
	if err := os.MkdirAll(s.conversationsDir(DefaultProjectID), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	projectFile := s.projectFile(DefaultProjectID)
	if _, err := os.Stat(projectFile); errors.Is(err, os.ErrNotExist) {
		project := Project{ID: DefaultProjectID, Name: "Default", CreatedAt: time.Now().UTC()}
		if err := writeJSONFile(projectFile, project); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) projectDir(projectID string) string {
	return filepath.Join(s.root, "projects", projectID)
}

func (s *Store) projectFile(projectID string) string {
	return filepath.Join(s.projectDir(projectID), "project.json")
}

func (s *Store) conversationsDir(projectID string) string {
	return filepath.Join(s.projectDir(projectID), "conversations")
}

func (s *Store) conversationFile(projectID, conversationID string) string {
	return filepath.Join(s.conversationsDir(projectID), conversationID+".json")
}

// ListProjects returns all projects sorted by creation time.
func (s *Store) ListProjects() ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.root, "projects"))
	if err != nil {
		return nil, fmt.Errorf("reading projects: %w", err)
	}

	var projects []Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var project Project
		if err := readJSONFile(s.projectFile(entry.Name()), &project); err != nil {
			continue
		}
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})
	return projects, nil
}

// CreateProject makes a new project with a generated ID.
func (s *Store) CreateProject(name string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project := Project{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now().UTC(),
	}
	if project.Name == "" {
		project.Name = "Untitled Project"
	}
	if err := os.MkdirAll(s.conversationsDir(project.ID), 0o755); err != nil {
		return Project{}, fmt.Errorf("creating project: %w", err)
	}
	if err := writeJSONFile(s.projectFile(project.ID), project); err != nil {
		return Project{}, err
	}
	logging.LogEvent("Project created: %s (%s)", project.Name, project.ID)
	return project, nil
}

// DeleteProject removes a project and everything under it. The default
// project is protected.
func (s *Store) DeleteProject(projectID string) error {
	if projectID == DefaultProjectID {
		return ErrProjectProtected
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.projectDir(projectID)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return os.RemoveAll(dir)
}

// ListConversations returns metadata for every conversation in a project,
// most recently updated first.
func (s *Store) ListConversations(projectID string) ([]ConversationMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.conversationsDir(projectID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading conversations: %w", err)
	}

	var metas []ConversationMeta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var conv Conversation
		if err := readJSONFile(filepath.Join(dir, entry.Name()), &conv); err != nil {
			logging.LogEvent("Skipping unreadable conversation file %s: %v", entry.Name(), err)
			continue
		}
		metas = append(metas, ConversationMeta{
			ID:           conv.ID,
			ProjectID:    conv.ProjectID,
			Title:        conv.Title,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
		})
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// CreateConversation starts an empty conversation in a project.
func (s *Store) CreateConversation(projectID string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.projectDir(projectID)); errors.Is(err, os.ErrNotExist) {
		return Conversation{}, ErrNotFound
	}

	now := time.Now().UTC()
	conv := Conversation{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     "New Conversation",
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}
	if err := writeJSONFile(s.conversationFile(projectID, conv.ID), conv); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// GetConversation loads one full conversation.
func (s *Store) GetConversation(projectID, conversationID string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(projectID, conversationID)
}

// DeleteConversation removes one conversation file.
func (s *Store) DeleteConversation(projectID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.conversationFile(projectID, conversationID)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// AddUserMessage appends the user's question to a conversation.
func (s *Store) AddUserMessage(projectID, conversationID, content string) error {
	return s.update(projectID, conversationID, func(conv *Conversation) {
		conv.Messages = append(conv.Messages, Message{
			Role:      "user",
			Content:   content,
			Timestamp: time.Now().UTC(),
		})
	})
}

// AddAssistantMessage appends the completed turn record. The chairman's
// response becomes the message content; the full deliberation rides along.
func (s *Store) AddAssistantMessage(projectID, conversationID string, result *council.Result, totals usage.Totals) error {
	return s.update(projectID, conversationID, func(conv *Conversation) {
		conv.Messages = append(conv.Messages, Message{
			Role:          "assistant",
			Content:       result.Stage3.Response,
			Timestamp:     time.Now().UTC(),
			Stage1:        result.Stage1,
			Stage1Failed:  result.Failures,
			Stage2:        result.Stage2,
			LabelToMember: result.LabelToMember,
			Aggregate:     result.Aggregate,
			Usage:         &totals,
		})
	})
}

// SetTitle replaces the conversation title.
func (s *Store) SetTitle(projectID, conversationID, title string) error {
	return s.update(projectID, conversationID, func(conv *Conversation) {
		conv.Title = title
	})
}

// History converts the stored messages into pipeline turns: role and content
// only, deliberation metadata stripped.
func (c Conversation) History() []council.Turn {
	turns := make([]council.Turn, 0, len(c.Messages))
	for _, msg := range c.Messages {
		turns = append(turns, council.Turn{Role: msg.Role, Content: msg.Content})
	}
	return turns
}

// MemoryContext reads the project's memory file. A missing file is an empty
// context, not an error.
func (s *Store) MemoryContext(projectID string) string {
	data, err := os.ReadFile(filepath.Join(s.projectDir(projectID), memoryFileName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SetMemoryContext overwrites the project's memory file.
func (s *Store) SetMemoryContext(projectID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.projectDir(projectID)); errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return writeFileAtomic(filepath.Join(s.projectDir(projectID), memoryFileName), []byte(content))
}

func (s *Store) load(projectID, conversationID string) (Conversation, error) {
	var conv Conversation
	err := readJSONFile(s.conversationFile(projectID, conversationID), &conv)
	if errors.Is(err, os.ErrNotExist) {
		return Conversation{}, ErrNotFound
	}
	return conv, err
}

func (s *Store) update(projectID, conversationID string, mutate func(*Conversation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.load(projectID, conversationID)
	if err != nil {
		return err
	}
	mutate(&conv)
	conv.UpdatedAt = time.Now().UTC()
	return writeJSONFile(s.conversationFile(projectID, conversationID), conv)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
