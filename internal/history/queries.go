package history

import (
	"strings"
	"time"
)

// isoDate formats a millisecond timestamp the way the archive's range
// filter expects, second precision.
func isoDate(unixMS int64) string {
	return time.UnixMilli(unixMS).UTC().Format("2006-01-02T15:04:05")
}

// timeRange is the shared block_data.block_time range filter.
func timeRange(startMS, stopMS int64) map[string]any {
	return map[string]any{
		"range": map[string]any{
			"block_data.block_time": map[string]any{
				"format": "strict_date_optional_time",
				"gte":    isoDate(startMS),
				"lte":    isoDate(stopMS),
			},
		},
	}
}

func descByBlockTime() []any {
	return []any{
		map[string]any{
			"block_data.block_time": map[string]any{
				"order":         "desc",
				"unmapped_type": "boolean",
			},
		},
	}
}

func multiMatch(query string) map[string]any {
	return map[string]any{
		"multi_match": map[string]any{
			"type":    "best_fields",
			"query":   query,
			"lenient": true,
		},
	}
}

func operationType(code string) map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"should":               []any{map[string]any{"match": map[string]any{"operation_type": code}}},
			"minimum_should_match": 1,
		},
	}
}

func searchBody(size int, fields []any, filter []any) map[string]any {
	return map[string]any{
		"track_total_hits": false,
		"sort":             descByBlockTime(),
		"fields":           fields,
		"size":             size,
		"version":          true,
		"script_fields":    map[string]any{},
		"stored_fields":    []string{"*"},
		"runtime_mappings": map[string]any{},
		"_source":          false,
		"query": map[string]any{
			"bool": map[string]any{
				"must":     []any{},
				"filter":   filter,
				"should":   []any{},
				"must_not": []any{},
			},
		},
		"highlight": map[string]any{"fragment_size": 2147483647},
	}
}

// SwapsQuery builds the archive query for liquidity pool exchanges of
// the given pool id, operation type 63.
func SwapsQuery(pool string, startMS, stopMS int64, size int) map[string]any {
	fields := []any{
		map[string]any{"field": "operation_history.operation_result.keyword", "include_unmapped": "false"},
		map[string]any{"field": "account_history.account.keyword", "include_unmapped": "false"},
		map[string]any{"field": "account_history.operation_id", "include_unmapped": "false"},
		map[string]any{"field": "block_data.block_num", "include_unmapped": "false"},
	}
	filter := []any{
		map[string]any{
			"bool": map[string]any{
				"filter": []any{
					multiMatch(pool),
					operationType("63"),
				},
			},
		},
		timeRange(startMS, stopMS),
		map[string]any{"exists": map[string]any{"field": "operation_history.operation_result"}},
	}
	return searchBody(size, fields, filter)
}

// FillsQuery builds the archive query for orderbook fills on the given
// symbol pair, operation type 4. Only taker fills are requested so each
// trade appears once.
func FillsQuery(pair string, startMS, stopMS int64, size int) map[string]any {
	symbols := strings.SplitN(pair, ":", 2)
	fields := []any{
		map[string]any{"field": "account_history.account.keyword"},
		map[string]any{"field": "operation_history.op"},
		map[string]any{"field": "account_history.operation_id"},
		map[string]any{"field": "block_data.block_num"},
	}
	filter := []any{
		map[string]any{
			"bool": map[string]any{
				"filter": []any{
					multiMatch(symbols[0]),
					multiMatch(symbols[1]),
					multiMatch("operation_history.op_object.is_maker : false"),
					operationType("4"),
				},
			},
		},
		timeRange(startMS, stopMS),
	}
	return searchBody(size, fields, filter)
}
