package space

import "fmt"

// Axis is one independent, ordered dimension of an experiment.
type Axis []any

// Linspace discretizes [min, max] into n evenly spaced samples, ends included.
func Linspace(min, max float64, n int) Axis {
	if n <= 0 {
		return Axis{}
	}
	if n == 1 {
		return Axis{min}
	}
	axis := make(Axis, n)
	step := (max - min) / float64(n-1)
	for i := 0; i < n; i++ {
		axis[i] = min + float64(i)*step
	}
	axis[n-1] = max
	return axis
}

func Bools() Axis {
	return Axis{false, true}
}

func Strings(values ...string) Axis {
	axis := make(Axis, len(values))
	for i, v := range values {
		axis[i] = v
	}
	return axis
}

// Setting holds one chosen value per axis, in axis order.
type Setting []any

func (s Setting) Bool(i int) bool {
	v, ok := s[i].(bool)
	if !ok {
		panic(fmt.Sprintf("space: setting value %d is %T, not bool", i, s[i]))
	}
	return v
}

func (s Setting) Float(i int) float64 {
	switch v := s[i].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	panic(fmt.Sprintf("space: setting value %d is %T, not a number", i, s[i]))
}

func (s Setting) String(i int) string {
	v, ok := s[i].(string)
	if !ok {
		panic(fmt.Sprintf("space: setting value %d is %T, not string", i, s[i]))
	}
	return v
}

// Tail returns the values from position i onward as strings.
func (s Setting) Tail(i int) []string {
	out := make([]string, 0, len(s)-i)
	for j := i; j < len(s); j++ {
		out = append(out, s.String(j))
	}
	return out
}
