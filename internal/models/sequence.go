package models

// Префиксы нумерации документов
const (
	SequencePrefixOrder      = "PO"  // Заказы-наряды
	SequencePrefixSettlement = "ST"  // Расчеты
	SequencePrefixProject    = "PRJ" // Проекты
)

// DocumentSequence представляет счетчик номеров документов на (префикс, год).
// Инкремент выполняется атомарным upsert-ом внутри транзакции документа,
// поэтому два одновременных запроса не могут получить один номер.
type DocumentSequence struct {
	Prefix     string `json:"prefix" gorm:"type:varchar(8);primaryKey"`
	Year       int    `json:"year" gorm:"primaryKey"`
	LastNumber int    `json:"last_number" gorm:"not null;default:0"`
}

// TableName указывает имя таблицы
func (DocumentSequence) TableName() string {
	return "document_sequences"
}
