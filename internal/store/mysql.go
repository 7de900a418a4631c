package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type documentRow struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Rev        string    `gorm:"size:64;not null"`
	Type       string    `gorm:"size:32;not null;uniqueIndex:idx_documents_type_business"`
	BusinessID string    `gorm:"size:191;not null;uniqueIndex:idx_documents_type_business"`
	Body       string    `gorm:"type:longtext;not null"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (documentRow) TableName() string { return "documents" }

// GormDocuments keeps documents in MySQL through gorm.
type GormDocuments struct {
	db *gorm.DB
}

var _ Documents = (*GormDocuments)(nil)

func NewGormDocuments(dsn string) (*GormDocuments, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("mysql migrate: %w", err)
	}
	return &GormDocuments{db: db}, nil
}

func (g *GormDocuments) Find(ctx context.Context, sel Selector) (*Document, error) {
	var rows []documentRow
	err := g.db.WithContext(ctx).
		Where("type = ? AND business_id = ?", sel.Type, sel.BusinessID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].document(), nil
}

func (g *GormDocuments) Get(ctx context.Context, id string) (*Document, error) {
	var row documentRow
	if err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.document(), nil
}

func (g *GormDocuments) Create(ctx context.Context, doc Document) (*Document, error) {
	doc.Rev = nextRev("")
	row := documentRow{
		ID:         doc.ID,
		Rev:        doc.Rev,
		Type:       doc.Type,
		BusinessID: doc.BusinessID,
		Body:       string(doc.Body),
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("create %s: %w", doc.ID, ErrExists)
		}
		return nil, err
	}
	return &doc, nil
}

func (g *GormDocuments) Put(ctx context.Context, doc Document) (*Document, error) {
	newRev := nextRev(doc.Rev)
	res := g.db.WithContext(ctx).
		Model(&documentRow{}).
		Where("id = ? AND rev = ?", doc.ID, doc.Rev).
		Updates(map[string]any{
			"rev":  newRev,
			"body": string(doc.Body),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := g.Get(ctx, doc.ID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("put %s at %s: %w", doc.ID, doc.Rev, ErrVersionConflict)
	}
	doc.Rev = newRev
	return &doc, nil
}

func (g *GormDocuments) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r documentRow) document() *Document {
	return &Document{
		ID:         r.ID,
		Rev:        r.Rev,
		Type:       r.Type,
		BusinessID: r.BusinessID,
		Body:       []byte(r.Body),
	}
}
