// Package trends provides the trend data model: virality calculus,
// coverage levels, and the archival predicate.
package trends

import (
	"math"

	"github.com/google/uuid"
)

// Topic enumerates the trend topics agents can post about.
type Topic string

const (
	TopicEconomic   Topic = "Economic"
	TopicHealth     Topic = "Health"
	TopicSpiritual  Topic = "Spiritual"
	TopicConspiracy Topic = "Conspiracy"
	TopicScience    Topic = "Science"
	TopicCulture    Topic = "Culture"
	TopicSport      Topic = "Sport"
)

// Topics returns all topics in a stable order.
func Topics() []Topic {
	return []Topic{
		TopicEconomic, TopicHealth, TopicSpiritual, TopicConspiracy,
		TopicScience, TopicCulture, TopicSport,
	}
}

// Sentiment is the tone a trend carries.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
)

// Signed maps a sentiment to +1 / -1 for the author PostEffect.
func (s Sentiment) Signed() float64 {
	if s == SentimentNegative {
		return -1
	}
	return 1
}

// CoverageLevel is the discrete audience-size class of a trend.
type CoverageLevel string

const (
	CoverageLow    CoverageLevel = "Low"
	CoverageMiddle CoverageLevel = "Middle"
	CoverageHigh   CoverageLevel = "High"
)

// Trend is an information trend published by an agent.
type Trend struct {
	ID                uuid.UUID
	SimulationID      uuid.UUID
	Topic             Topic
	OriginatorID      uuid.UUID
	ParentID          *uuid.UUID
	CreatedTS         float64 // sim-minute of creation
	BaseVirality      float64 // 0.0-5.0
	Coverage          CoverageLevel
	TotalInteractions int
	Sentiment         Sentiment
	LastInteractionTS float64 // sim-minute of most recent interaction
}

// CurrentVirality grows logarithmically with interactions, capped at 5.0.
func (t *Trend) CurrentVirality() float64 {
	if t.TotalInteractions == 0 {
		return t.BaseVirality
	}
	bonus := 0.05 * math.Log(float64(t.TotalInteractions)+1)
	return math.Min(5.0, t.BaseVirality+bonus)
}

// AddInteraction registers one interaction at the given sim-minute.
func (t *Trend) AddInteraction(now float64) {
	t.TotalInteractions++
	t.LastInteractionTS = now
}

// Active reports whether the trend is still within the archival window.
func (t *Trend) Active(now float64, thresholdDays int) bool {
	return now-t.LastInteractionTS < float64(thresholdDays)*1440
}

// CoverageFactor is the time-budget drain multiplier applied to readers.
func (t *Trend) CoverageFactor() float64 {
	switch t.Coverage {
	case CoverageMiddle:
		return 0.4
	case CoverageHigh:
		return 0.6
	default:
		return 0.2
	}
}

// AudienceShare is the fraction of the eligible audience the trend reaches.
func (t *Trend) AudienceShare() float64 {
	switch t.Coverage {
	case CoverageMiddle:
		return 0.6
	case CoverageHigh:
		return 1.0
	default:
		return 0.3
	}
}

// CoverageFromStatus maps the normalized mean social status of the eligible
// audience (0..1) to a coverage level.
func CoverageFromStatus(normalized float64) CoverageLevel {
	switch {
	case normalized < 0.33:
		return CoverageLow
	case normalized < 0.66:
		return CoverageMiddle
	default:
		return CoverageHigh
	}
}
