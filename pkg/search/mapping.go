package search

import (
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

const alertType = "alert"

// BuildIndexMapping 告警文档映射；说明和推理做全文，严重度做关键词
func BuildIndexMapping(defaultAnalyzer string) *mapping.IndexMappingImpl {
	if defaultAnalyzer == "" {
		defaultAnalyzer = standard.Name
	}
	idx := mapping.NewIndexMapping()
	idx.DefaultAnalyzer = defaultAnalyzer
	idx.TypeField = "type"

	// 文本
	text := mapping.NewTextFieldMapping()
	text.Store = true
	text.Index = true
	text.Analyzer = defaultAnalyzer
	text.IncludeInAll = true
	text.IncludeTermVectors = true

	// 关键词
	kw := mapping.NewTextFieldMapping()
	kw.Store = true
	kw.Index = true
	kw.Analyzer = keyword.Name
	kw.IncludeInAll = false

	num := mapping.NewNumericFieldMapping()
	num.Store = true
	num.Index = true
	num.IncludeInAll = false
	dt := mapping.NewDateTimeFieldMapping()
	dt.Store = true
	dt.Index = true
	dt.IncludeInAll = false

	alert := mapping.NewDocumentMapping()
	alert.Dynamic = false
	alert.AddFieldMappingsAt("policy_title", text)
	alert.AddFieldMappingsAt("explanation", text)
	alert.AddFieldMappingsAt("reasoning", text)
	alert.AddFieldMappingsAt("severity", kw)
	alert.AddFieldMappingsAt("video_timestamp", kw)
	alert.AddFieldMappingsAt("policy_level", num)
	alert.AddFieldMappingsAt("created_at", dt)
	idx.AddDocumentMapping(alertType, alert)

	def := mapping.NewDocumentMapping()
	def.Dynamic = false
	idx.DefaultMapping = def
	return idx
}
