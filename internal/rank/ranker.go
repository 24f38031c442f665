package rank

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"outreach-engine/internal/directory"
	"outreach-engine/internal/domain"
	"outreach-engine/internal/logging"
	"outreach-engine/internal/metrics"
)

const (
	DefaultMaxProspects    = 20
	DefaultSearchThreshold = 20
)

type Ranker struct {
	Searcher        directory.Searcher // optional
	Scorer          Scorer             // optional; Heuristic is used when nil or failing
	Sizes           Sizes
	MaxProspects    int
	SearchThreshold int
	Log             *zap.Logger
	Metrics         *metrics.Metrics
}

type Input struct {
	Company domain.Company
	Job     domain.JobPosting
}

// Rank runs aggregation, supplementary search, dedup, location filter,
// scoring and ordering for one company. Collaborator failures are logged and
// never abort the run.
func (r *Ranker) Rank(ctx context.Context, in Input) []Candidate {
	log := logging.OrNop(r.Log).Named("rank").With(
		zap.Int64("company_id", in.Company.ID),
		zap.String("domain", in.Company.Domain))
	max := r.MaxProspects
	if max <= 0 {
		max = DefaultMaxProspects
	}
	threshold := r.SearchThreshold
	if threshold <= 0 {
		threshold = DefaultSearchThreshold
	}

	employees := in.Company.EmployeeCount
	cands := r.Sizes.Aggregate(in.Company.Profile, employees)

	if len(cands) < threshold && r.Searcher != nil {
		cands = append(cands, r.search(ctx, log, in, max-len(cands))...)
	}

	cands = Dedup(cands, in.Company.Domain)
	cands = FilterByCountry(cands, in.Job.Country)
	if len(cands) == 0 {
		return nil
	}

	r.score(ctx, log, in, cands)
	return Order(cands, max)
}

func (r *Ranker) search(ctx context.Context, log *zap.Logger, in Input, limit int) []Candidate {
	if limit <= 0 {
		return nil
	}
	name := in.Company.Name
	if name == "" && in.Company.Profile != nil {
		name = in.Company.Profile.Name
	}
	people, err := r.Searcher.Search(ctx, directory.SearchRequest{
		CompanyName:   name,
		CompanyDomain: in.Company.Domain,
		Titles:        r.Sizes.TargetRoles(in.Job.Title, in.Company.EmployeeCount),
		Country:       in.Job.Country,
		Limit:         limit,
	})
	if err != nil {
		log.Warn("directory search failed", zap.Error(err))
		return nil
	}

	small := r.Sizes.IsSmall(in.Company.EmployeeCount)
	out := make([]Candidate, 0, len(people))
	for _, p := range people {
		if p.Name == "" {
			continue
		}
		founder := hasWord(p.Title, "founder") || hasWord(p.Title, "cofounder")
		out = append(out, fromPerson(domain.Person{
			Name:        p.Name,
			Title:       p.Title,
			Location:    p.Location,
			LinkedInURL: p.LinkedInURL,
		}, SourceDirectory, InferPriority(p.Title, founder, small), founder))
	}
	if len(out) > limit {
		out = out[:limit]
	}
	log.Debug("directory search", zap.Int("found", len(out)))
	return out
}

func (r *Ranker) score(ctx context.Context, log *zap.Logger, in Input, cands []Candidate) {
	req := ScoreRequest{
		CompanyName:   in.Company.Name,
		CompanyDomain: in.Company.Domain,
		EmployeeCount: in.Company.EmployeeCount,
		JobTitle:      in.Job.Title,
		JobLocation:   in.Job.Location,
		Candidates:    cands,
	}
	if p := in.Company.Profile; p != nil {
		req.Industry = p.Industry
		req.Description = p.Description
	}

	var scores []float64
	if r.Scorer != nil {
		s, err := r.Scorer.Score(ctx, req)
		if err == nil && len(s) != len(cands) {
			err = errScoreCount
		}
		if err != nil {
			log.Warn("scorer failed, using heuristic", zap.Error(err))
			if r.Metrics != nil {
				r.Metrics.ScorerFallback.Inc()
			}
		} else {
			scores = s
		}
	}
	if scores == nil {
		scores, _ = Heuristic{Sizes: r.Sizes}.Score(ctx, req)
	}
	for i := range cands {
		cands[i].Score = clamp01(scores[i])
	}
}

// Order sorts by score weighted by priority, best first, and keeps at most max.
// Ties keep input order.
func Order(cands []Candidate, max int) []Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].RankScore() > cands[j].RankScore()
	})
	if max > 0 && len(cands) > max {
		cands = cands[:max]
	}
	return cands
}
