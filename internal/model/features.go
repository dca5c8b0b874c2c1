package model

import "sort"

// Features is a per-bar map of named derived values, for logging or export.
// Booleans are stored as 0/1 and enums as their ordinal.
type Features map[string]float64

// Bool stores a boolean feature as 0/1.
func (f Features) Bool(name string, v bool) {
	if v {
		f[name] = 1
		return
	}
	f[name] = 0
}

// Names returns the feature names in sorted order.
func (f Features) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy.
func (f Features) Clone() Features {
	out := make(Features, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// FeatureName builds names such as "SMA_20".
func FeatureName(kind string, period int) string {
	return kind + "_" + Itoa(period)
}

// Itoa is a minimal int-to-string converter for hot-path feature naming.
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for ; n > 0; n /= 10 {
		i--
		buf[i] = byte('0' + n%10)
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
