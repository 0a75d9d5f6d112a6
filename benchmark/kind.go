package benchmark

// Kind identifies the operation a duration measures. The declaration order
// determines the order in which results are reported.
type Kind int

const (
	QueryIndexed Kind = iota
	OneByOneCreate
	OneByOneUpdate
	OneByOneRefresh
	OneByOneDelete
	BatchCreate
	BatchUpdate
	BatchRead
	BatchAccess
	BatchDelete

	numberOfKinds
)

var kindNames = [numberOfKinds]string{
	QueryIndexed:    "QUERY_INDEXED",
	OneByOneCreate:  "ONE_BY_ONE_CREATE",
	OneByOneUpdate:  "ONE_BY_ONE_UPDATE",
	OneByOneRefresh: "ONE_BY_ONE_REFRESH",
	OneByOneDelete:  "ONE_BY_ONE_DELETE",
	BatchCreate:     "BATCH_CREATE",
	BatchUpdate:     "BATCH_UPDATE",
	BatchRead:       "BATCH_READ",
	BatchAccess:     "BATCH_ACCESS",
	BatchDelete:     "BATCH_DELETE",
}

// Kinds returns all kinds in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, numberOfKinds)
	for k := Kind(0); k < numberOfKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k Kind) Valid() bool {
	return k >= 0 && k < numberOfKinds
}

func (k Kind) String() string {
	if !k.Valid() {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// ParseKind is the inverse of String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}
