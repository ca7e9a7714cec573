package api

// CompletionRequest представляет запрос на генерацию текста
type CompletionRequest struct {
	Prompt     string `json:"prompt"`                // текст запроса
	DocumentID string `json:"document_id,omitempty"` // документ, в который вставляется результат
	MaxTokens  int    `json:"max_tokens,omitempty"`  // ограничение длины ответа
}

// CompletionResponse представляет сгенерированный текст
type CompletionResponse struct {
	Text  string `json:"text"`            // сгенерированный фрагмент
	Model string `json:"model,omitempty"` // модель, выполнившая запрос
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
