package mcptools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ragcrawld/ragcrawld/internal/crawl/orchestrate"
	"github.com/ragcrawld/ragcrawld/internal/urlkit"
)

const (
	defaultMaxDepth           = 3
	defaultMaxConcurrent      = 10
	defaultMultiURLConcurrent = 5
	defaultMemoryThresholdMB  = 1024
)

type crawlAggregateOutput struct {
	Success            bool     `json:"success"`
	URL                string   `json:"url,omitempty"`
	StrategyUsed       string   `json:"strategy_used,omitempty"`
	ChunksStored       int      `json:"chunks_stored"`
	CodeExamplesStored int      `json:"code_examples_stored"`
	SourcesUpdated     int      `json:"sources_updated"`
	PagesCrawled       int      `json:"pages_crawled"`
	Warnings           []string `json:"warnings,omitempty"`
	Error              string   `json:"error,omitempty"`
}

func aggregateOutput(url string, agg orchestrate.Aggregate) crawlAggregateOutput {
	return crawlAggregateOutput{
		Success:            agg.Success,
		URL:                url,
		StrategyUsed:       agg.StrategyName,
		ChunksStored:       agg.ChunksStored,
		CodeExamplesStored: agg.CodeExamplesStored,
		SourcesUpdated:     agg.SourcesUpdated,
		PagesCrawled:       agg.PagesCrawled,
		Warnings:           agg.Warnings,
	}
}

func validateCrawlURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	if !urlkit.IsSafeForStorage(rawURL) {
		return fmt.Errorf("url %q failed safety validation", rawURL)
	}
	return nil
}

type crawlSinglePageInput struct {
	URL string `json:"url" jsonschema:"required,URL of the page to crawl"`
}

type smartCrawlURLInput struct {
	URL           string `json:"url" jsonschema:"required,URL to crawl (sitemap, text file, or webpage)"`
	MaxDepth      int    `json:"max_depth,omitempty" jsonschema:"Maximum recursion depth for webpage crawls (default: 3)"`
	MaxConcurrent int    `json:"max_concurrent,omitempty" jsonschema:"Maximum concurrent page fetches (default: 10)"`
	ChunkSize     int    `json:"chunk_size,omitempty" jsonschema:"Target chunk size in characters (default: 5000)"`
}

type stealthCrawlInput struct {
	URL             string  `json:"url" jsonschema:"required,URL to crawl"`
	WaitForSelector string  `json:"wait_for_selector,omitempty" jsonschema:"CSS selector to wait for before extracting content"`
	ExtraWait       float64 `json:"extra_wait,omitempty" jsonschema:"Extra seconds to wait after the page signals load"`
	MaxDepth        int     `json:"max_depth,omitempty" jsonschema:"Maximum recursion depth (default: 3)"`
}

type multiURLEntry struct {
	URL       string `json:"url" jsonschema:"required,URL to crawl"`
	ChunkSize int    `json:"chunk_size,omitempty" jsonschema:"Per-URL chunk size override"`
}

type multiURLConfigInput struct {
	URLs          []multiURLEntry `json:"urls_json" jsonschema:"required,URLs to crawl, each optionally overriding chunk_size"`
	MaxConcurrent int             `json:"max_concurrent,omitempty" jsonschema:"Maximum URLs crawled concurrently (default: 5)"`
}

type multiURLConfigOutput struct {
	Success bool                   `json:"success"`
	Results []crawlAggregateOutput `json:"results"`
	Count   int                    `json:"count"`
}

type memoryMonitoringInput struct {
	URL               string  `json:"url" jsonschema:"required,URL to crawl"`
	MemoryThresholdMB float64 `json:"memory_threshold_mb,omitempty" jsonschema:"Go heap memory threshold in MB (runtime allocation, not resident set size) that triggers throttling (default: 1024)"`
	MaxConcurrent     int     `json:"max_concurrent,omitempty" jsonschema:"Starting concurrency before any throttling (default: 10)"`
}

type memoryMonitoringOutput struct {
	crawlAggregateOutput
	PeakMemoryMB   float64 `json:"peak_memory_mb"`
	ThrottleEvents int     `json:"throttle_events"`
}

type graphExtractionInput struct {
	URL                  string `json:"url" jsonschema:"required,URL to crawl"`
	ExtractEntities      bool   `json:"extract_entities,omitempty" jsonschema:"Accepted but not read: this tool always stores both entities and relationships"`
	ExtractRelationships bool   `json:"extract_relationships,omitempty" jsonschema:"Accepted but not read: this tool always stores both entities and relationships"`
	ChunkSize            int    `json:"chunk_size,omitempty" jsonschema:"Target chunk size in characters"`
}

func (s *Server) registerCrawlTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "crawl_single_page",
		Description: "Crawl a single URL and store its content as document chunks, without following links.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args crawlSinglePageInput) (*mcp.CallToolResult, crawlAggregateOutput, error) {
		if err := validateCrawlURL(args.URL); err != nil {
			out := newErrorOutput("%s", err.Error())
			res, merr := textResult(out)
			return res, crawlAggregateOutput{Success: false, Error: out.Error}, merr
		}
		agg := s.orchestrator.Crawl(ctx, orchestrate.Request{
			URL:              args.URL,
			Recursive:        false,
			SkipCodeExamples: !s.features.UseAgenticRAG,
		})
		out := aggregateOutput(args.URL, agg)
		res, err := textResult(out)
		return res, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "smart_crawl_url",
		Description: "Crawl url, auto-selecting a sitemap, text-file, or recursive webpage strategy based on its shape.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args smartCrawlURLInput) (*mcp.CallToolResult, crawlAggregateOutput, error) {
		if err := validateCrawlURL(args.URL); err != nil {
			out := newErrorOutput("%s", err.Error())
			res, merr := textResult(out)
			return res, crawlAggregateOutput{Success: false, Error: out.Error}, merr
		}
		maxDepth := args.MaxDepth
		if maxDepth <= 0 {
			maxDepth = defaultMaxDepth
		}
		maxConcurrent := args.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = defaultMaxConcurrent
		}
		agg := s.orchestrator.Crawl(ctx, orchestrate.Request{
			URL:              args.URL,
			Recursive:        true,
			MaxDepth:         maxDepth,
			MaxConcurrency:   maxConcurrent,
			ChunkSize:        args.ChunkSize,
			SkipCodeExamples: !s.features.UseAgenticRAG,
		})
		out := aggregateOutput(args.URL, agg)
		res, err := textResult(out)
		return res, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "crawl_with_stealth_mode",
		Description: "Smart crawl url via a fetcher configured to wait for dynamic content before extracting it.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args stealthCrawlInput) (*mcp.CallToolResult, crawlAggregateOutput, error) {
		if err := validateCrawlURL(args.URL); err != nil {
			out := newErrorOutput("%s", err.Error())
			res, merr := textResult(out)
			return res, crawlAggregateOutput{Success: false, Error: out.Error}, merr
		}
		maxDepth := args.MaxDepth
		if maxDepth <= 0 {
			maxDepth = defaultMaxDepth
		}
		agg := s.orchestrator.Crawl(ctx, orchestrate.Request{
			URL:       args.URL,
			Recursive: true,
			MaxDepth:  maxDepth,
			Stealth: orchestrate.StealthConfig{
				Enabled:         true,
				WaitForSelector: args.WaitForSelector,
				PostLoadDelay:   time.Duration(args.ExtraWait * float64(time.Second)),
			},
			SkipCodeExamples: !s.features.UseAgenticRAG,
		})
		out := aggregateOutput(args.URL, agg)
		res, err := textResult(out)
		return res, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "crawl_with_multi_url_config",
		Description: "Crawl a batch of URLs concurrently, each classified to pick its content profile.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args multiURLConfigInput) (*mcp.CallToolResult, multiURLConfigOutput, error) {
		if len(args.URLs) == 0 {
			out := multiURLConfigOutput{Success: false}
			res, err := textResult(out)
			return res, out, err
		}
		maxConcurrent := args.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = defaultMultiURLConcurrent
		}

		results := make([]crawlAggregateOutput, len(args.URLs))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxConcurrent)
		for i, entry := range args.URLs {
			i, entry := i, entry
			g.Go(func() error {
				if err := validateCrawlURL(entry.URL); err != nil {
					results[i] = crawlAggregateOutput{Success: false, URL: entry.URL, Error: err.Error()}
					return nil
				}
				profile := orchestrate.ProfileForURL(entry.URL)
				s.logger.Debug("multi-url crawl classified url",
					zap.String("url", entry.URL), zap.String("category", string(profile.Category)))
				agg := s.orchestrator.Crawl(gctx, orchestrate.Request{
					URL:              entry.URL,
					Recursive:        true,
					MaxDepth:         defaultMaxDepth,
					ChunkSize:        entry.ChunkSize,
					SkipCodeExamples: !s.features.UseAgenticRAG,
				})
				results[i] = aggregateOutput(entry.URL, agg)
				return nil
			})
		}
		_ = g.Wait()

		anySuccess := false
		for _, r := range results {
			if r.Success {
				anySuccess = true
				break
			}
		}
		out := multiURLConfigOutput{Success: anySuccess, Results: results, Count: len(results)}
		res, err := textResult(out)
		return res, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "crawl_with_memory_monitoring",
		Description: "Smart crawl url, halving the starting concurrency (floor 1) when one Go heap memory sample taken before the crawl is over the threshold; the crawl's batches are not sampled separately.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args memoryMonitoringInput) (*mcp.CallToolResult, memoryMonitoringOutput, error) {
		if err := validateCrawlURL(args.URL); err != nil {
			out := memoryMonitoringOutput{crawlAggregateOutput: crawlAggregateOutput{Success: false, Error: err.Error()}}
			res, merr := textResult(out)
			return res, out, merr
		}
		thresholdMB := args.MemoryThresholdMB
		if thresholdMB <= 0 {
			thresholdMB = defaultMemoryThresholdMB
		}
		maxConcurrent := args.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = defaultMaxConcurrent
		}

		monitor := orchestrate.NewMemoryMonitor(uint64(thresholdMB * 1024 * 1024))
		adjusted := monitor.NextConcurrency(maxConcurrent)

		agg := s.orchestrator.Crawl(ctx, orchestrate.Request{
			URL:              args.URL,
			Recursive:        true,
			MaxDepth:         defaultMaxDepth,
			MaxConcurrency:   adjusted,
			SkipCodeExamples: !s.features.UseAgenticRAG,
		})
		out := memoryMonitoringOutput{
			crawlAggregateOutput: aggregateOutput(args.URL, agg),
			PeakMemoryMB:         float64(monitor.Peak()) / (1024 * 1024),
			ThrottleEvents:       monitor.ThrottleCount(),
		}
		res, err := textResult(out)
		return res, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "crawl_with_graph_extraction",
		Description: "Crawl url, storing chunks in the vector store and entities/relationships in the graph store.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args graphExtractionInput) (*mcp.CallToolResult, crawlAggregateOutput, error) {
		if err := validateCrawlURL(args.URL); err != nil {
			out := newErrorOutput("%s", err.Error())
			res, merr := textResult(out)
			return res, crawlAggregateOutput{Success: false, Error: out.Error}, merr
		}
		if !s.features.UseKnowledgeGraph || s.graphStore == nil {
			out := newErrorOutput("graph extraction requires features.use_knowledge_graph and a configured graph store")
			res, merr := textResult(out)
			return res, crawlAggregateOutput{Success: false, Error: out.Error}, merr
		}
		agg := s.orchestrator.Crawl(ctx, orchestrate.Request{
			URL:              args.URL,
			Recursive:        false,
			ChunkSize:        args.ChunkSize,
			GraphEnabled:     true,
			SkipCodeExamples: !s.features.UseAgenticRAG,
		})
		out := aggregateOutput(args.URL, agg)
		res, err := textResult(out)
		return res, out, err
	})
}
