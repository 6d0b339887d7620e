package minting

import (
	"encoding/json"

	"github.com/feral-file/ff-mint-reconciler/internal/domain"
	"github.com/feral-file/ff-mint-reconciler/internal/mintapi"
	"github.com/feral-file/ff-mint-reconciler/internal/store/schema"
)

// Chunk is a same-contract subset of a claimed batch sent in one API call
type Chunk struct {
	ContractAddress string
	Assets          []schema.MintAsset
}

// ChunkByContract groups assets by contract address and splits every group into chunks
// of at most size assets. Sizes outside (0, 100] are clamped to 100.
func ChunkByContract(assets []schema.MintAsset, size int) []Chunk {
	if size <= 0 || size > domain.MAX_MINT_CHUNK_SIZE {
		size = domain.MAX_MINT_CHUNK_SIZE
	}

	// Contracts keep the order they first appear in
	var contracts []string
	groups := make(map[string][]schema.MintAsset)
	for _, a := range assets {
		if _, ok := groups[a.ContractAddress]; !ok {
			contracts = append(contracts, a.ContractAddress)
		}
		groups[a.ContractAddress] = append(groups[a.ContractAddress], a)
	}

	var chunks []Chunk
	for _, contract := range contracts {
		group := groups[contract]
		for start := 0; start < len(group); start += size {
			end := min(start+size, len(group))
			chunks = append(chunks, Chunk{
				ContractAddress: contract,
				Assets:          group[start:end],
			})
		}
	}

	return chunks
}

// IDs returns the record ids of the chunk
func (c Chunk) IDs() []string {
	ids := make([]string, 0, len(c.Assets))
	for _, a := range c.Assets {
		ids = append(ids, a.ID)
	}
	return ids
}

// MintAssets converts the chunk into the API request entries
func (c Chunk) MintAssets() []mintapi.MintAsset {
	out := make([]mintapi.MintAsset, 0, len(c.Assets))
	for _, a := range c.Assets {
		out = append(out, mintapi.MintAsset{
			ReferenceID:  a.ReferenceID,
			OwnerAddress: a.OwnerAddress,
			TokenID:      a.TokenID,
			Amount:       a.Amount,
			Metadata:     json.RawMessage(a.Metadata),
		})
	}
	return out
}

// PartitionByReferenceIDs splits the chunk's record ids into those whose reference id is
// listed and the rest
func (c Chunk) PartitionByReferenceIDs(referenceIDs []string) (listed, rest []string) {
	set := make(map[string]struct{}, len(referenceIDs))
	for _, r := range referenceIDs {
		set[r] = struct{}{}
	}
	for _, a := range c.Assets {
		if _, ok := set[a.ReferenceID]; ok {
			listed = append(listed, a.ID)
		} else {
			rest = append(rest, a.ID)
		}
	}
	return listed, rest
}

// PartitionByTries splits the chunk's record ids after a failed attempt: retry holds the
// rows that still have attempts left, exhausted the rows whose failed attempt was their last.
func (c Chunk) PartitionByTries(maxNumberOfTries int) (retry, exhausted []string) {
	for _, a := range c.Assets {
		if a.TriedCount+1 < maxNumberOfTries {
			retry = append(retry, a.ID)
		} else {
			exhausted = append(exhausted, a.ID)
		}
	}
	return retry, exhausted
}
