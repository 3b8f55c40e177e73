package locator

import "sort"

// Pair is a (source, destination) kind pair
type Pair struct {
	Source Kind
	Dest   Kind
}

// directTransfers lists every pair that can move data without local
// streams. It is the only place this decision is made.
var directTransfers = map[Pair]string{
	{KindGS, KindBigQuery}:  "BigQuery load job from Cloud Storage",
	{KindBigQuery, KindGS}:  "BigQuery extract job to Cloud Storage",
	{KindS3, KindSnowflake}: "Snowflake COPY INTO from an S3 stage",
}

// SupportsDirectTransfer reports whether dest can load directly from source
func SupportsDirectTransfer(source, dest Kind) bool {
	_, ok := directTransfers[Pair{source, dest}]
	return ok
}

// DirectTransfers returns the supported pairs with a short description,
// sorted by source then destination.
func DirectTransfers() ([]Pair, map[Pair]string) {
	pairs := make([]Pair, 0, len(directTransfers))
	descriptions := make(map[Pair]string, len(directTransfers))
	for p, desc := range directTransfers {
		pairs = append(pairs, p)
		descriptions[p] = desc
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Source != pairs[j].Source {
			return pairs[i].Source < pairs[j].Source
		}
		return pairs[i].Dest < pairs[j].Dest
	})
	return pairs, descriptions
}
