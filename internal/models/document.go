package models

import "time"

// Document представляет сохранённое состояние документа (главы/сцены рукописи).
// Content хранится как непрозрачный сериализованный снимок редактора.
type Document struct {
	UpdatedAt time.Time `json:"updated_at"` // UpdatedAt время последней успешной записи
	CreatedAt time.Time `json:"created_at"` // CreatedAt время первой записи
	ID        string    `json:"id"`         // ID идентификатор документа
	Content   []byte    `json:"content"`    // Content сериализованное содержимое
	Revision  int64     `json:"revision"`   // Revision монотонно растущий номер записи
}

// Clone создает глубокую копию документа
func (d *Document) Clone() *Document {
	content := make([]byte, len(d.Content))
	copy(content, d.Content)

	return &Document{
		ID:        d.ID,
		Content:   content,
		Revision:  d.Revision,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
