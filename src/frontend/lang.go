package frontend

type reservedItem struct {
	val string
	typ itemType
}

// rw contains the set of all reserved middle code keywords.
// The first dimension equals the length of the word.
// The second dimension is the slice of all words of that length.
// Indexing by length and searching should be faster than using a hash table.
var rw = [...][]reservedItem{
	// One-grams
	{},
	// Two-grams
	{},
	// Three-grams
	{
		{val: "end", typ: itemEnd},
		{val: "var", typ: itemVar},
	},
	// Four-grams
	{
		{val: "func", typ: itemFunc},
		{val: "temp", typ: itemTemp},
	},
	// Five-grams
	{
		{val: "deref", typ: itemDeref},
	},
	// Six-grams
	{
		{val: "extern", typ: itemExtern},
		{val: "static", typ: itemStatic},
	},
}

// isKeyword returns true if the string s is a reserved middle code keyword.
// On the return of true the itemType of the keyword is returned.
// On the return of false the itemType is either itemIdentifier or itemError.
func isKeyword(s string) (bool, itemType) {
	if len(s) == 0 {
		return false, itemError
	}
	if len(s) > len(rw) {
		return false, itemIdentifier
	}

	// Check if string s is a reserved word by iterating over all words in rw of length len(s).
	for _, e1 := range rw[len(s)-1] {
		if e1.val == s {
			return true, e1.typ
		}
	}
	return false, itemIdentifier
}
