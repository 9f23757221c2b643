package services

import "errors"

// Категории ошибок бизнес-логики. Сервисы оборачивают их через
// fmt.Errorf("%w: ..."), контроллеры через errors.Is выбирают HTTP-статус.
var (
	// ErrValidation — входные данные вне допустимых диапазонов
	ErrValidation = errors.New("некорректные данные")
	// ErrNotFound — запись по указанному ID отсутствует
	ErrNotFound = errors.New("запись не найдена")
	// ErrInvalidState — операция недопустима в текущем статусе документа
	ErrInvalidState = errors.New("операция недопустима в текущем статусе")
	// ErrPermission — недостаточный уровень роли
	ErrPermission = errors.New("недостаточно прав")
	// ErrConflict — нарушение уникальности (повторный расчет по заказу,
	// коллизия номера документа)
	ErrConflict = errors.New("конфликт данных")
)
