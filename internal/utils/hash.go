package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// ContentHash возвращает hex-представление sha256 от payload.
// Это единственная функция адресации в content store: один и тот же байтовый
// payload всегда дает один и тот же адрес.
func ContentHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// CanonicalJSON сериализует значение в детерминированный JSON.
// encoding/json сортирует ключи map, но для стабильности хэшей манифестов
// мы дополнительно прогоняем результат через unmarshal/marshal, чтобы убрать
// зависимость от порядка полей во входном json.RawMessage.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to re-parse value: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize value: %w", err)
	}
	return canonical, nil
}

// HashOf — хелпер: каноническая сериализация + ContentHash.
func HashOf(v interface{}) (string, []byte, error) {
	payload, err := CanonicalJSON(v)
	if err != nil {
		return "", nil, err
	}
	return ContentHash(payload), payload, nil
}

// SortedInts возвращает отсортированную копию среза без дубликатов.
// Используется для chapters_completed, чтобы записи были стабильны и сравнимы.
func SortedInts(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
