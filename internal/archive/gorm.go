package archive

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/housie-backend/internal/prize"
)

type GameResult struct {
	ID        uint   `gorm:"primaryKey"`
	RoomCode  string `gorm:"index;size:16"`
	Calls     string `gorm:"size:512"`
	CallCount int
	Players   int
	EndedAt   time.Time `gorm:"index"`
	Wins      []PrizeWin
	CreatedAt time.Time
}

type PrizeWin struct {
	ID           uint   `gorm:"primaryKey"`
	GameResultID uint   `gorm:"index"`
	PrizeID      string `gorm:"size:32"`
	PrizeName    string `gorm:"size:64"`
	PlayerName   string `gorm:"size:128"`
	Serial       int
	Position     int
}

// GormRecorder stores results in postgres.
type GormRecorder struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the archive tables.
func OpenPostgres(dsn string) (*GormRecorder, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	return NewGormRecorder(db)
}

func NewGormRecorder(db *gorm.DB) (*GormRecorder, error) {
	if err := db.AutoMigrate(&GameResult{}, &PrizeWin{}); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return &GormRecorder{db: db}, nil
}

func (g *GormRecorder) Record(ctx context.Context, r Result) error {
	row := toRow(r)
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("archive: record %s: %w", r.RoomCode, err)
	}
	return nil
}

// Recent returns the latest results for a room, newest first.
func (g *GormRecorder) Recent(ctx context.Context, roomCode string, limit int) ([]Result, error) {
	var rows []GameResult
	err := g.db.WithContext(ctx).
		Preload("Wins").
		Where("room_code = ?", roomCode).
		Order("ended_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("archive: recent %s: %w", roomCode, err)
	}
	out := make([]Result, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("archive: result %d: %w", row.ID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func toRow(r Result) GameResult {
	row := GameResult{
		RoomCode:  r.RoomCode,
		Calls:     encodeCalls(r.Calls),
		CallCount: len(r.Calls),
		Players:   r.Players,
		EndedAt:   r.EndedAt,
	}
	for _, w := range r.Wins {
		row.Wins = append(row.Wins, PrizeWin{
			PrizeID:    w.PrizeID,
			PrizeName:  w.PrizeName,
			PlayerName: w.PlayerName,
			Serial:     w.Serial,
			Position:   w.Position,
		})
	}
	return row
}

func fromRow(row GameResult) (Result, error) {
	calls, err := decodeCalls(row.Calls)
	if err != nil {
		return Result{}, err
	}
	r := Result{RoomCode: row.RoomCode, EndedAt: row.EndedAt, Calls: calls, Players: row.Players}
	for _, w := range row.Wins {
		r.Wins = append(r.Wins, prize.Claim{
			PrizeID:    w.PrizeID,
			PrizeName:  w.PrizeName,
			PlayerName: w.PlayerName,
			Serial:     w.Serial,
			Position:   w.Position,
		})
	}
	return r, nil
}
