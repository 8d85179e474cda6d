package search

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"

	"SafeStack/internal/models"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

var ErrClosed = errors.New("search index closed")

// Hit 一条命中，调用方按 AlertID 回库取完整记录
type Hit struct {
	AlertID uint    `json:"alert_id"`
	Score   float64 `json:"score"`
}

// Request 检索条件；MinLevel 为 0 时不过滤
type Request struct {
	Query    string
	MinLevel int
	Limit    int
}

// AlertIndex 告警全文索引
type AlertIndex struct {
	index  bleve.Index
	mu     sync.RWMutex
	closed bool
}

// Open 打开 path 处的索引，不存在则新建
func Open(path string) (*AlertIndex, error) {
	var idx bleve.Index
	if _, err := os.Stat(path); err == nil {
		i, e := bleve.Open(path)
		if e != nil {
			return nil, e
		}
		idx = i
	} else if os.IsNotExist(err) {
		i, e := bleve.New(path, BuildIndexMapping(""))
		if e != nil {
			return nil, e
		}
		idx = i
	} else {
		return nil, err
	}
	return &AlertIndex{index: idx}, nil
}

// NewMemory builds an index that lives only in memory.
func NewMemory() (*AlertIndex, error) {
	idx, err := bleve.NewMemOnly(BuildIndexMapping(""))
	if err != nil {
		return nil, err
	}
	return &AlertIndex{index: idx}, nil
}

func (a *AlertIndex) guard() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	return nil
}

func docID(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func (a *AlertIndex) Index(ctx context.Context, alert *models.AlertView) error {
	if err := a.guard(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.index.Index(docID(alert.ID), map[string]any{
		"type":            alertType,
		"policy_title":    alert.PolicyTitle,
		"explanation":     alert.Explanation,
		"reasoning":       alert.Reasoning,
		"severity":        alert.Severity,
		"video_timestamp": alert.VideoTimestamp,
		"policy_level":    float64(alert.PolicyLevel),
		"created_at":      alert.Timestamp,
	})
}

// IndexBatch 用于启动时从数据库重建
func (a *AlertIndex) IndexBatch(ctx context.Context, alerts []models.AlertView) error {
	if err := a.guard(); err != nil {
		return err
	}
	const bs = 200
	for i := 0; i < len(alerts); i += bs {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := i + bs
		if end > len(alerts) {
			end = len(alerts)
		}
		b := a.index.NewBatch()
		for j := range alerts[i:end] {
			v := &alerts[i+j]
			err := b.Index(docID(v.ID), map[string]any{
				"type":            alertType,
				"policy_title":    v.PolicyTitle,
				"explanation":     v.Explanation,
				"reasoning":       v.Reasoning,
				"severity":        v.Severity,
				"video_timestamp": v.VideoTimestamp,
				"policy_level":    float64(v.PolicyLevel),
				"created_at":      v.Timestamp,
			})
			if err != nil {
				return err
			}
		}
		if err := a.index.Batch(b); err != nil {
			return err
		}
	}
	return nil
}

func (a *AlertIndex) Delete(_ context.Context, id uint) error {
	if err := a.guard(); err != nil {
		return err
	}
	return a.index.Delete(docID(id))
}

// Search 按相关度排序，同分时新的在前
func (a *AlertIndex) Search(ctx context.Context, req Request) ([]Hit, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}

	var q query.Query
	if req.Query == "" {
		q = bleve.NewMatchAllQuery()
	} else {
		mq := bleve.NewMatchQuery(req.Query)
		mq.SetOperator(query.MatchQueryOperatorAnd)
		q = mq
	}
	if req.MinLevel > 0 {
		min := float64(req.MinLevel)
		inclusive := true
		lq := bleve.NewNumericRangeInclusiveQuery(&min, nil, &inclusive, nil)
		lq.SetField("policy_level")
		q = bleve.NewConjunctionQuery(q, lq)
	}

	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	sr := bleve.NewSearchRequestOptions(q, limit, 0, false)
	sr.SortBy([]string{"-_score", "-created_at"})

	res, err := a.index.SearchInContext(ctx, sr)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseUint(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{AlertID: uint(id), Score: h.Score})
	}
	return hits, nil
}

func (a *AlertIndex) Count() (uint64, error) {
	if err := a.guard(); err != nil {
		return 0, err
	}
	return a.index.DocCount()
}

func (a *AlertIndex) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.index.Close()
}
