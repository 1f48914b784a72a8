package cell

// emptyAggregate is the result of an aggregate over no values: the null of the
// lowest affinity present, or of the highest one when every input is null.
func emptyAggregate(cells []Cell) Cell {
	if len(cells) == 0 {
		return Null(LowestOf())
	}
	return Null(HighestOf(cells...))
}

// Min returns the smallest non-null cell. On ties the first one wins.
func Min(cells ...Cell) Cell {
	found := false
	var result Cell
	for _, c := range cells {
		if c.null {
			continue
		}
		if !found || Compare(c, result) < 0 {
			result = c
			found = true
		}
	}
	if !found {
		return emptyAggregate(cells)
	}
	return result
}

// Max returns the largest non-null cell. On ties the first one wins.
func Max(cells ...Cell) Cell {
	found := false
	var result Cell
	for _, c := range cells {
		if c.null {
			continue
		}
		if !found || Compare(c, result) > 0 {
			result = c
			found = true
		}
	}
	if !found {
		return emptyAggregate(cells)
	}
	return result
}

// Sum adds the non-null cells, promoting affinities as Add does.
func Sum(cells ...Cell) Cell {
	found := false
	var result Cell
	for _, c := range cells {
		if c.null {
			continue
		}
		if !found {
			result = c
			found = true
			continue
		}
		result = Add(result, c)
	}
	if !found {
		return emptyAggregate(cells)
	}
	return result
}

// AndAll is true when every non-null cell is true.
func AndAll(cells ...Cell) Cell {
	found := false
	result := true
	for _, c := range cells {
		if c.null {
			continue
		}
		found = true
		result = result && c.ValueBool()
	}
	if !found {
		return Null(AffinityBool)
	}
	return Bool(result)
}

// OrAny is true when any non-null cell is true.
func OrAny(cells ...Cell) Cell {
	found := false
	result := false
	for _, c := range cells {
		if c.null {
			continue
		}
		found = true
		result = result || c.ValueBool()
	}
	if !found {
		return Null(AffinityBool)
	}
	return Bool(result)
}

// Coalesce returns the first non-null cell, or the last null one.
func Coalesce(cells ...Cell) Cell {
	for _, c := range cells {
		if !c.null {
			return c
		}
	}
	if len(cells) == 0 {
		return Null(LowestOf())
	}
	return cells[len(cells)-1]
}
