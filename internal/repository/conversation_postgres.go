package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/avdosev/ragchat-backend/internal/entity"
	pkgRetry "github.com/avdosev/ragchat-backend/internal/pkg/retry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultTitle      = "New Chat"
	seedSystemMessage = "You are a helpful assistant!"
)

// ConversationRepository defines the interface for conversation persistence.
//
// AppendAndPersist merges onto the *stored* record, not a stale in-memory
// copy: title and files are re-read inside the write transaction and the
// update is guarded by the record's version token. Two concurrent writers
// to the same conversation remain last-writer-wins on message interleaving;
// the version guard only prevents lost title/file updates.
type ConversationRepository interface {
	Create(ctx context.Context) (*entity.Conversation, error)
	Get(ctx context.Context, id string) (*entity.Conversation, error)
	List(ctx context.Context) ([]entity.ConversationInfo, error)
	AppendAndPersist(ctx context.Context, id string, msgs []entity.Message, title *string, files []string) error
	ReplaceFiles(ctx context.Context, id string, files []string) error
	Clear(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

var _ ConversationRepository = &ConversationPostgres{}

// ConversationPostgres implements ConversationRepository using PostgreSQL
type ConversationPostgres struct {
	db        *pgxpool.Pool
	retryOpts []retry.Option
}

func NewConversationPostgres(db *pgxpool.Pool, retryCfg pkgRetry.RetryConfig) *ConversationPostgres {
	return &ConversationPostgres{
		db: db,
		retryOpts: append(
			retryCfg.ToRetryOptions(),
			retry.RetryIf(func(err error) bool {
				return errors.Is(err, entity.ErrVersionConflict)
			}),
		),
	}
}

// Create inserts a conversation seeded with one system message.
func (r *ConversationPostgres) Create(ctx context.Context) (*entity.Conversation, error) {
	id := uuid.New()
	now := time.Now().UTC()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO conversations (id, title, files, version, created_at, updated_at)
		 VALUES ($1, $2, '[]'::jsonb, 1, $3, $3)`,
		toPgUUID(id), defaultTitle, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	seed := entity.Message{
		ID:        uuid.New().String(),
		Role:      entity.RoleSystem,
		Content:   seedSystemMessage,
		CreatedAt: now,
	}
	if err := insertMessages(ctx, tx, id, []entity.Message{seed}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &entity.Conversation{
		ID:        id.String(),
		Title:     defaultTitle,
		Files:     []string{},
		Messages:  []entity.Message{seed},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *ConversationPostgres) Get(ctx context.Context, id string) (*entity.Conversation, error) {
	convID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid conversation ID %q", entity.ErrConversationNotFound, id)
	}

	var (
		conv      entity.Conversation
		filesJSON []byte
	)
	err = r.db.QueryRow(ctx,
		`SELECT id, COALESCE(title, ''), files, version, created_at, updated_at
		 FROM conversations WHERE id = $1`,
		toPgUUID(convID),
	).Scan(&conv.ID, &conv.Title, &filesJSON, &conv.Version, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	if err := json.Unmarshal(filesJSON, &conv.Files); err != nil {
		return nil, fmt.Errorf("decode files list: %w", err)
	}
	if conv.Files == nil {
		conv.Files = []string{}
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, role, content, created_at
		 FROM conversation_messages WHERE conversation_id = $1 ORDER BY seq`,
		toPgUUID(convID),
	)
	if err != nil {
		return nil, fmt.Errorf("get conversation messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg entity.Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return &conv, nil
}

func (r *ConversationPostgres) List(ctx context.Context) ([]entity.ConversationInfo, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, COALESCE(title, '') FROM conversations ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	infos := make([]entity.ConversationInfo, 0)
	for rows.Next() {
		var info entity.ConversationInfo
		if err := rows.Scan(&info.ID, &info.Title); err != nil {
			return nil, fmt.Errorf("scan conversation info: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return infos, nil
}

// AppendAndPersist appends messages and merges title/files metadata in one
// versioned write. Empty msgs is allowed and performs a metadata-only merge
// (used when attaching files). A nil title keeps the stored one; supplied
// files are unioned with the stored set. Version conflicts are retried with
// a fresh read each attempt.
func (r *ConversationPostgres) AppendAndPersist(ctx context.Context, id string, msgs []entity.Message, title *string, files []string) error {
	convID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid conversation ID %q", entity.ErrConversationNotFound, id)
	}

	err = retry.Do(
		func() error {
			return r.appendOnce(ctx, convID, msgs, title, files)
		},
		append(r.retryOpts, retry.Context(ctx), retry.LastErrorOnly(true))...,
	)
	if err != nil {
		if errors.Is(err, entity.ErrConversationNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", entity.ErrPersistence, err)
	}
	return nil
}

func (r *ConversationPostgres) appendOnce(ctx context.Context, convID uuid.UUID, msgs []entity.Message, title *string, files []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		storedTitle string
		filesJSON   []byte
		version     int64
	)
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(title, ''), files, version FROM conversations WHERE id = $1`,
		toPgUUID(convID),
	).Scan(&storedTitle, &filesJSON, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.ErrConversationNotFound
	}
	if err != nil {
		return fmt.Errorf("read conversation for merge: %w", err)
	}

	var storedFiles []string
	if err := json.Unmarshal(filesJSON, &storedFiles); err != nil {
		return fmt.Errorf("decode stored files: %w", err)
	}

	mergedTitle := storedTitle
	if title != nil && *title != "" {
		mergedTitle = *title
	}
	mergedFiles := unionFiles(storedFiles, files)

	mergedJSON, err := json.Marshal(mergedFiles)
	if err != nil {
		return fmt.Errorf("encode files list: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE conversations
		 SET title = $2, files = $3, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $4`,
		toPgUUID(convID), mergedTitle, mergedJSON, version,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Another writer bumped the version between our read and write.
		return entity.ErrVersionConflict
	}

	if err := insertMessages(ctx, tx, convID, msgs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ReplaceFiles overwrites the attached-file set wholesale.
func (r *ConversationPostgres) ReplaceFiles(ctx context.Context, id string, files []string) error {
	convID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid conversation ID %q", entity.ErrConversationNotFound, id)
	}

	filesJSON, err := json.Marshal(unionFiles(nil, files))
	if err != nil {
		return fmt.Errorf("encode files list: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE conversations SET files = $2, version = version + 1, updated_at = now() WHERE id = $1`,
		toPgUUID(convID), filesJSON,
	)
	if err != nil {
		return fmt.Errorf("%w: replace files: %v", entity.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrConversationNotFound
	}
	return nil
}

// Clear deletes all messages of a conversation. Title and attached-file
// metadata are kept: clearing resets the dialogue, not the document set.
func (r *ConversationPostgres) Clear(ctx context.Context, id string) error {
	convID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid conversation ID %q", entity.ErrConversationNotFound, id)
	}

	_, err = r.db.Exec(ctx,
		`DELETE FROM conversation_messages WHERE conversation_id = $1`,
		toPgUUID(convID),
	)
	if err != nil {
		return fmt.Errorf("%w: clear conversation: %v", entity.ErrPersistence, err)
	}
	return nil
}

func (r *ConversationPostgres) Delete(ctx context.Context, id string) error {
	convID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid conversation ID %q", entity.ErrConversationNotFound, id)
	}

	tag, err := r.db.Exec(ctx,
		`DELETE FROM conversations WHERE id = $1`,
		toPgUUID(convID),
	)
	if err != nil {
		return fmt.Errorf("%w: delete conversation: %v", entity.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrConversationNotFound
	}
	return nil
}

func insertMessages(ctx context.Context, tx pgx.Tx, convID uuid.UUID, msgs []entity.Message) error {
	for _, msg := range msgs {
		msgID := msg.ID
		if msgID == "" {
			msgID = uuid.New().String()
		}
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO conversation_messages (id, conversation_id, role, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			msgID, toPgUUID(convID), string(msg.Role), msg.Content, createdAt,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return nil
}

// unionFiles merges two filename lists preserving first-seen order and
// collapsing duplicates.
func unionFiles(stored, added []string) []string {
	merged := make([]string, 0, len(stored)+len(added))
	seen := make(map[string]struct{}, len(stored)+len(added))
	for _, lists := range [][]string{stored, added} {
		for _, f := range lists {
			if f == "" {
				continue
			}
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			merged = append(merged, f)
		}
	}
	return merged
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{
		Bytes: id,
		Valid: true,
	}
}
