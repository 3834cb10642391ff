package entity

import (
	"fmt"
	"strings"
)

// LODLevel целевой уровень проработки (Level of Development) элемента модели
type LODLevel string

const (
	LOD300 LODLevel = "LOD 300" // точная геометрия
	LOD400 LODLevel = "LOD 400" // изготовление
	LOD500 LODLevel = "LOD 500" // исполнительная модель
)

// DefaultLOD используется, пока пользователь ничего не выбрал
const DefaultLOD = LOD300

// LODLevels возвращает все уровни в порядке возрастания
func LODLevels() []LODLevel {
	return []LODLevel{LOD300, LOD400, LOD500}
}

// ParseLODLevel принимает "LOD 400", "LOD400" или просто "400"
func ParseLODLevel(s string) (LODLevel, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "LOD")
	v = strings.TrimSpace(v)

	for _, level := range LODLevels() {
		if level.Number() == v {
			return level, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownLOD, s)
}

// Valid сообщает, входит ли значение в закрытое перечисление
func (l LODLevel) Valid() bool {
	switch l {
	case LOD300, LOD400, LOD500:
		return true
	}
	return false
}

// Number возвращает числовую часть метки ("300")
func (l LODLevel) Number() string {
	return strings.TrimPrefix(string(l), "LOD ")
}

// Hint короткое описание уровня для формы
func (l LODLevel) Hint() string {
	switch l {
	case LOD300:
		return "Geometry defined. Specific system. No bolts/welds."
	case LOD400:
		return "Fabrication ready. Bolts, welds, chamfers included."
	case LOD500:
		return "As-Built verified. Contains manufacturer info."
	}
	return ""
}

// Phase стадия проекта, которой соответствует уровень
func (l LODLevel) Phase() string {
	switch l {
	case LOD300:
		return "Coordination"
	case LOD400:
		return "Fabrication"
	case LOD500:
		return "Operations"
	}
	return ""
}
