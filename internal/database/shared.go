package database

import (
	"database/sql"
	"sort"
)

// scanContactRows materializes the common contacts-table column set shared
// by Query and DeduplicateByHash.
func scanContactRows(rows *sql.Rows) ([]ContactRow, error) {
	var out []ContactRow
	for rows.Next() {
		var r ContactRow
		var metaBytes []byte
		if err := rows.Scan(&r.ID, &r.ListingID, &r.Method, &r.Value, &r.ConfidenceScore, &r.Source, &r.Status,
			&r.ValidatedAt, &r.CreatedAt, &r.UpdatedAt, &metaBytes, &r.HashSignature); err != nil {
			return nil, err
		}
		meta, err := decodeMetadata(metaBytes)
		if err != nil {
			return nil, err
		}
		r.Metadata = meta
		out = append(out, r)
	}
	return out, rows.Err()
}

// clusterByHash groups rows by hash_signature into review clusters.
func clusterByHash(rows []ContactRow) []Cluster {
	byHash := map[string][]ContactRow{}
	var order []string
	for _, r := range rows {
		if _, ok := byHash[r.HashSignature]; !ok {
			order = append(order, r.HashSignature)
		}
		byHash[r.HashSignature] = append(byHash[r.HashSignature], r)
	}
	sort.Strings(order)
	out := make([]Cluster, 0, len(order))
	for _, h := range order {
		out = append(out, Cluster{HashSignature: h, Contacts: byHash[h]})
	}
	return out
}
