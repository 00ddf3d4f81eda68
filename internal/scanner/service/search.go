package service

import (
	"context"
	"errors"
	"fmt"
)

// 检索默认返回条数
const TRADE_SEARCH_LIMIT = 50

var ErrSearchUnavailable = errors.New("trade search unavailable: elasticsearch not configured")

// SearchStoredTrades 按关键词检索某个钱包已落库的成交
// 关键词匹配代币名称和符号，空关键词返回该钱包最近的成交
// 查询带routing，只打到写入时按钱包路由的分片
func (a *Analyzer) SearchStoredTrades(ctx context.Context, walletAddress, queryText string, limit int) ([]map[string]interface{}, error) {
	es := a.repo.GetES()
	if es == nil {
		return nil, ErrSearchUnavailable
	}
	if limit <= 0 {
		limit = TRADE_SEARCH_LIMIT
	}

	boolQuery := map[string]interface{}{
		"filter": []map[string]interface{}{
			{"term": map[string]interface{}{"wallet_address": walletAddress}},
		},
	}
	if queryText != "" {
		boolQuery["must"] = []map[string]interface{}{
			{"multi_match": map[string]interface{}{
				"query":  queryText,
				"fields": []string{"token_symbol^2", "token_name", "mint"},
			}},
		}
	}

	query := map[string]interface{}{
		"size": limit,
		"sort": []map[string]interface{}{
			{"transaction_time": map[string]interface{}{"order": "desc"}},
		},
		"query": map[string]interface{}{"bool": boolQuery},
	}

	res, err := es.SearchWithRouting(ctx, a.cfg.Elasticsearch.TradesIndexName, walletAddress, query)
	if err != nil {
		return nil, fmt.Errorf("search trades for %s: %w", walletAddress, err)
	}

	docs := make([]map[string]interface{}, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}
