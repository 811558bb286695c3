package config

import "strconv"

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
func formatInt(n int) string       { return strconv.Itoa(n) }
func formatBool(b bool) string     { return strconv.FormatBool(b) }
