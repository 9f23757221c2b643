package services

import (
	"fmt"
	"time"

	"recessims/server/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceService выдает человекочитаемые номера документов вида
// PO-2026-0001 / ST-2026-0001, уникальные в пределах года.
//
// Номер берется из счетчика document_sequences атомарным
// INSERT ... ON CONFLICT DO UPDATE в транзакции документа:
// схема "прочитать максимум и прибавить единицу" давала дубли номеров
// при одновременном создании двух документов.
type SequenceService struct {
	db *gorm.DB
}

// NewSequenceService создает новый экземпляр SequenceService
func NewSequenceService(db *gorm.DB) *SequenceService {
	return &SequenceService{db: db}
}

// NextNumber выдает следующий номер для префикса в текущем году.
// Вызывается внутри транзакции создаваемого документа (tx): пока она
// не завершится, строка счетчика остается заблокированной, и
// конкурирующая выдача номера ждет исхода этой транзакции.
func (s *SequenceService) NextNumber(tx *gorm.DB, prefix string) (string, error) {
	if tx == nil {
		tx = s.db
	}
	year := time.Now().UTC().Year()

	seq := models.DocumentSequence{Prefix: prefix, Year: year, LastNumber: 1}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "prefix"}, {Name: "year"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_number": gorm.Expr("last_number + 1"),
		}),
	}).Create(&seq).Error
	if err != nil {
		return "", fmt.Errorf("ошибка инкремента счетчика номеров: %w", err)
	}

	// Upsert не возвращает итоговое значение — перечитываем строку
	// в той же транзакции (она держит блокировку строки до коммита)
	if err := tx.First(&seq, "prefix = ? AND year = ?", prefix, year).Error; err != nil {
		return "", fmt.Errorf("ошибка чтения счетчика номеров: %w", err)
	}

	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq.LastNumber), nil
}
