package storage

const (
	PrefixReserve   = 1
	PrefixSequence  = 2
	PrefixEntry     = 3
	PrefixReference = 4
	PrefixMint      = 5
	PrefixAccount   = 6
	PrefixHolder    = 7
)
