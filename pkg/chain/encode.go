// Package chain реализует цикл tool-calling между моделью и экраном.
package chain

import (
	"encoding/json"

	"github.com/ovchar/kursor/pkg/tools"
)

// toolPayload — тело tool сообщения, уходящее модели.
//
// Поле Output инструмента сюда не попадает: модель видит только
// ошибки и описания скриншотов. Успешное действие без скриншота
// кодируется пустым объектом {}.
type toolPayload struct {
	Error string        `json:"error,omitempty"`
	Image *imagePayload `json:"image,omitempty"`
}

// imagePayload — представление скриншота в tool сообщении.
//
// Data несёт не пиксели, а текстовое описание от vision модели.
// Форма блока (type/media_type/data) сохранена от base64 картинок,
// чтобы модель основного цикла видела привычную структуру.
type imagePayload struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// EncodeToolResult сериализует результат действия в строку
// для content поля tool сообщения.
//
// imageText — описание скриншота от vision модели; пустая строка
// если скриншота не было. Всегда возвращает валидный JSON объект.
func EncodeToolResult(res tools.Result, imageText string) string {
	payload := toolPayload{
		Error: res.Error,
	}

	if res.Image != nil {
		payload.Image = &imagePayload{
			Type:      "base64",
			MediaType: res.Image.MediaType,
			Data:      imageText,
		}
	}

	return marshalToolPayload(payload)
}

// marshalToolPayload сериализует payload, гарантируя валидный JSON.
func marshalToolPayload(payload toolPayload) string {
	data, err := json.Marshal(payload)
	if err != nil {
		// Marshal двух строковых полей не падает, но контракт
		// "всегда валидный JSON" держим и на этом пути
		return `{"error":"failed to encode tool result"}`
	}
	return string(data)
}

// decodeToolPayload разбирает content tool сообщения обратно в payload.
//
// Возвращает false для контента, который не является нашим payload.
func decodeToolPayload(content string) (toolPayload, bool) {
	var payload toolPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return toolPayload{}, false
	}
	return payload, true
}
