package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/xiaodingfeng/contract-review/model"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// Store persists contracts, users and Q&A history in a sqlite database.
type Store struct {
	db *gorm.DB
}

func NewStore(databasePath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.Contract{}, &model.User{}, &model.QAMessage{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) CreateContract(ctx context.Context, contract *model.Contract) error {
	if contract.CreatedAt.IsZero() {
		contract.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(contract).Error
}

func (s *Store) GetContract(ctx context.Context, id string) (*model.Contract, error) {
	var contract model.Contract
	err := s.db.WithContext(ctx).First(&contract, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

// GetContractByKey looks a contract up by its editor document key.
func (s *Store) GetContractByKey(ctx context.Context, documentKey string) (*model.Contract, error) {
	var contract model.Contract
	err := s.db.WithContext(ctx).First(&contract, "document_key = ?", documentKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (s *Store) ListContracts(ctx context.Context) ([]model.Contract, error) {
	var contracts []model.Contract
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&contracts).Error
	return contracts, err
}

func (s *Store) ListContractsByUser(ctx context.Context, userID string) ([]model.Contract, error) {
	var contracts []model.Contract
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&contracts).Error
	return contracts, err
}

// SaveAnalysis stores the deep-review output and flips the contract to
// Reviewed. It is written as a single update so a failed review never
// leaves a half-reviewed row behind.
func (s *Store) SaveAnalysis(ctx context.Context, id, analysisResult, preAnalysisData, perspective string) error {
	result := s.db.WithContext(ctx).
		Model(&model.Contract{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"analysis_result":   analysisResult,
			"pre_analysis_data": preAnalysisData,
			"perspective":       perspective,
			"status":            model.StatusReviewed,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteContract(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&model.Contract{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetUserByFingerprint(ctx context.Context, fingerprintID string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, "fingerprint_id = ?", fingerprintID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *Store) AppendQAMessage(ctx context.Context, msg *model.QAMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *Store) ListQAHistory(ctx context.Context) ([]model.QAMessage, error) {
	var history []model.QAMessage
	err := s.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&history).Error
	return history, err
}
