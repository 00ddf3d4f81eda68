package pipeline

import (
	"context"
	"time"

	"soltrack/internal/scanner/model"
	"soltrack/pkg/jupiter"

	"go.uber.org/zap"
)

const (
	METADATA_BATCH_SIZE  = 50                     // 每批解析的代币数量
	METADATA_BATCH_DELAY = 150 * time.Millisecond // 批次间隔，配合客户端限速
)

// LoadTokenMetadata 尽力解析代币展示信息写入本次扫描的缓存
// 已入库的代币直接复用，其余分批查目录；目录缺失或批次失败的代币使用占位信息，
// 不中断装载。新解析出的信息回写数据库供后续扫描复用。
func (s *ScanContext) LoadTokenMetadata(ctx context.Context, mints []string) {
	if len(mints) == 0 {
		return
	}
	s.status.UniqueTokens = len(mints)
	s.pushStatus()

	pending := make([]string, 0, len(mints))
	for _, mint := range mints {
		if s.tokenDAO != nil {
			info, err := s.tokenDAO.GetTokenInfo(ctx, mint)
			if err != nil {
				s.tl.Warn("❌ 读取代币信息失败", zap.String("mint", mint), zap.Error(err))
			}
			if info != nil {
				s.tokenInfos[mint] = info
				continue
			}
		}
		pending = append(pending, mint)
	}
	if len(pending) == 0 {
		s.tl.Info("✅ 代币信息全部命中缓存", zap.Int("tokens", len(mints)))
		return
	}

	missing := make([]string, 0)
	resolved := make([]*model.TokenInfo, 0, len(pending))
	for start := 0; start < len(pending); start += METADATA_BATCH_SIZE {
		batch := pending[start:min(start+METADATA_BATCH_SIZE, len(pending))]

		catalog, err := s.fetchCatalogIndex(ctx)
		if err != nil {
			s.tl.Warn("❌ 代币目录拉取失败，本批次使用占位信息",
				zap.Int("batch_size", len(batch)), zap.Error(err))
			for _, mint := range batch {
				s.tokenInfos[mint] = model.PlaceholderTokenInfo(mint)
				missing = append(missing, mint)
			}
		} else {
			for _, mint := range batch {
				tok, ok := catalog[mint]
				if !ok {
					s.tokenInfos[mint] = model.PlaceholderTokenInfo(mint)
					missing = append(missing, mint)
					continue
				}
				info := &model.TokenInfo{
					Mint:     mint,
					Name:     tok.Name,
					Symbol:   tok.Symbol,
					Logo:     tok.LogoURI,
					Decimals: uint8(tok.Decimals),
				}
				s.tokenInfos[mint] = info
				resolved = append(resolved, info)
			}
		}

		if start+METADATA_BATCH_SIZE < len(pending) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(METADATA_BATCH_DELAY):
			}
		}
	}

	if len(resolved) > 0 && s.tokenDAO != nil {
		if err := s.tokenDAO.UpsertTokenInfos(ctx, resolved); err != nil {
			s.tl.Warn("❌ 代币信息落库失败", zap.Int("count", len(resolved)), zap.Error(err))
		}
	}
	if len(missing) > 0 && s.onMissing != nil {
		s.onMissing(missing)
	}
	s.tl.Info("✅ 代币信息装载完成",
		zap.Int("tokens", len(mints)),
		zap.Int("resolved", len(resolved)),
		zap.Int("missing", len(missing)))
}

// fetchCatalogIndex 拉取全量目录并按mint建索引
// 目录接口不支持按mint过滤，只能整取后本地筛选
func (s *ScanContext) fetchCatalogIndex(ctx context.Context) (map[string]jupiter.CatalogToken, error) {
	var tokens []jupiter.CatalogToken
	err := s.exec.Execute(ctx, "get_token_catalog", func(ctx context.Context) error {
		var ferr error
		tokens, ferr = s.catalog.GetTokenCatalog(ctx)
		return ferr
	})
	if err != nil {
		return nil, err
	}

	byMint := make(map[string]jupiter.CatalogToken, len(tokens))
	for _, tok := range tokens {
		byMint[tok.Address] = tok
	}
	return byMint, nil
}
