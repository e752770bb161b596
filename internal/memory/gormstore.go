package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// conversationMessage is the database row for a Message.
type conversationMessage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"column:session_id;not null;default:'';index"`
	Role      string    `gorm:"column:role;not null"`
	Content   string    `gorm:"column:content;type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (conversationMessage) TableName() string { return "conversation_messages" }

func (r conversationMessage) message() Message {
	return Message{
		ID:        r.ID,
		SessionID: r.SessionID,
		Role:      Role(r.Role),
		Content:   r.Content,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// GormStore keeps the conversation log in a SQL database.
type GormStore struct {
	db *gorm.DB
}

// OpenSQLite opens or creates a sqlite database at path.
func OpenSQLite(path string, logger *zap.Logger) (*GormStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create sqlite dir: %w", err)
	}
	return openGorm(sqlite.Open(path), logger)
}

// OpenPostgres connects to postgres with dsn.
func OpenPostgres(dsn string, logger *zap.Logger) (*GormStore, error) {
	return openGorm(postgres.Open(dsn), logger)
}

func openGorm(dialector gorm.Dialector, logger *zap.Logger) (*GormStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gormLog := gormLogger.New(
		zap.NewStdLog(logger.Named("gorm")),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation database: %w", err)
	}
	if err := db.AutoMigrate(&conversationMessage{}); err != nil {
		return nil, fmt.Errorf("failed to migrate conversation table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Append(ctx context.Context, msgs ...Message) ([]Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	rows := make([]conversationMessage, len(msgs))
	now := time.Now().UTC()
	for i, m := range msgs {
		created := m.CreatedAt
		if created.IsZero() {
			created = now
		}
		rows[i] = conversationMessage{SessionID: m.SessionID, Role: string(m.Role), Content: m.Content, CreatedAt: created}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("appending messages: %w", err)
	}
	out := make([]Message, len(rows))
	for i, r := range rows {
		out[i] = r.message()
	}
	return out, nil
}

func (s *GormStore) Get(ctx context.Context, id int64) (Message, error) {
	var row conversationMessage
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("getting message %d: %w", id, err)
	}
	return row.message(), nil
}

func (s *GormStore) Update(ctx context.Context, id int64, content string) error {
	res := s.db.WithContext(ctx).Model(&conversationMessage{}).Where("id = ?", id).Update("content", content)
	if res.Error != nil {
		return fmt.Errorf("updating message %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&conversationMessage{}, id)
	if res.Error != nil {
		return fmt.Errorf("deleting message %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) All(ctx context.Context) ([]Message, error) {
	var rows []conversationMessage
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	out := make([]Message, len(rows))
	for i, r := range rows {
		out[i] = r.message()
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
