package cache

// FlattenThreefoldWays concatenates the Conceptual (INT) lists of an
// ordered ThreefoldWay sequence into one flat INT path, the "build_int_path"
// step SCM/ICM storage runs before reducing and wrapping a closed attempt.
func FlattenThreefoldWays(moves []*ThreefoldWay) []*StrategyInt {
	out := []*StrategyInt{}
	for _, m := range moves {
		out = append(out, m.Conceptual...)
	}
	return out
}
