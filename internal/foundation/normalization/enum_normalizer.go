package normalization

import "fmt"

// EnumNormalizer wraps Normalizer with the enum name for error messages.
type EnumNormalizer[T comparable] struct {
	normalizer *Normalizer[T]
	enumName   string
}

// NewEnumNormalizer creates an enum normalizer with descriptive error messages.
func NewEnumNormalizer[T comparable](enumName string, values map[string]T, defaultValue T) *EnumNormalizer[T] {
	return &EnumNormalizer[T]{
		normalizer: NewNormalizer(values, defaultValue),
		enumName:   enumName,
	}
}

// Normalize converts raw string to enum value, returning default on invalid input.
func (e *EnumNormalizer[T]) Normalize(raw string) T {
	return e.normalizer.Normalize(raw)
}

// NormalizeWithValidation converts raw string to enum value with validation error.
func (e *EnumNormalizer[T]) NormalizeWithValidation(raw string) (T, error) {
	result, err := e.normalizer.NormalizeWithError(raw)
	if err != nil {
		return result, fmt.Errorf("invalid %s: %w", e.enumName, err)
	}
	return result, nil
}

// ValidValues returns all valid enum values for documentation/help.
func (e *EnumNormalizer[T]) ValidValues() []string {
	return e.normalizer.ValidKeys()
}
