package statics

import (
	"capsim/internal/agents"
	"capsim/internal/trends"
)

// Defaults returns the built-in lookup tables. The repository seeds its
// store from these on first open and serves them back through
// LoadStaticTables.
func Defaults() *Tables {
	return &Tables{
		Affinity:        defaultAffinity(),
		AttributeRanges: defaultAttributeRanges(),
		InterestRanges:  defaultInterestRanges(),
		TopicInterest:   defaultTopicInterest(),
		ShopWeights:     defaultShopWeights(),
	}
}

func defaultAffinity() map[agents.Profession]map[trends.Topic]float64 {
	row := func(econ, health, spirit, consp, sci, cult, sport float64) map[trends.Topic]float64 {
		return map[trends.Topic]float64{
			trends.TopicEconomic:   econ,
			trends.TopicHealth:     health,
			trends.TopicSpiritual:  spirit,
			trends.TopicConspiracy: consp,
			trends.TopicScience:    sci,
			trends.TopicCulture:    cult,
			trends.TopicSport:      sport,
		}
	}
	return map[agents.Profession]map[trends.Topic]float64{
		agents.ShopClerk:       row(3, 2, 2, 3, 1, 2, 2),
		agents.Worker:          row(3, 3, 2, 3, 1, 2, 3),
		agents.Developer:       row(3, 2, 1, 2, 5, 3, 2),
		agents.Politician:      row(5, 4, 2, 2, 3, 3, 2),
		agents.Blogger:         row(4, 4, 3, 4, 3, 5, 4),
		agents.Businessman:     row(5, 3, 2, 2, 3, 3, 3),
		agents.Doctor:          row(3, 5, 2, 1, 5, 2, 3),
		agents.Teacher:         row(3, 4, 3, 2, 4, 4, 3),
		agents.Unemployed:      row(4, 3, 3, 4, 2, 3, 3),
		agents.Artist:          row(2, 2, 4, 2, 2, 5, 2),
		agents.SpiritualMentor: row(2, 3, 5, 3, 2, 3, 2),
		agents.Philosopher:     row(3, 3, 5, 3, 4, 4, 1),
	}
}

func defaultAttributeRanges() map[agents.Profession]AttributeRanges {
	r := func(finLo, finHi, recLo, recHi, socLo, socHi, enLo, enHi, tbLo, tbHi float64) AttributeRanges {
		return AttributeRanges{
			FinancialCapability: Range{finLo, finHi},
			TrendReceptivity:    Range{recLo, recHi},
			SocialStatus:        Range{socLo, socHi},
			EnergyLevel:         Range{enLo, enHi},
			TimeBudget:          Range{tbLo, tbHi},
		}
	}
	return map[agents.Profession]AttributeRanges{
		agents.ShopClerk:       r(2, 4, 1, 3, 1, 3, 2, 5, 3, 5),
		agents.Worker:          r(2, 4, 1, 3, 1, 2, 2, 5, 3, 5),
		agents.Developer:       r(3, 5, 3, 5, 2, 4, 2, 5, 2, 4),
		agents.Politician:      r(3, 5, 3, 5, 4, 5, 2, 4, 2, 4),
		agents.Blogger:         r(2, 4, 4, 5, 3, 5, 2, 5, 3, 5),
		agents.Businessman:     r(4, 5, 2, 4, 4, 5, 2, 5, 2, 4),
		agents.SpiritualMentor: r(1, 3, 2, 5, 2, 4, 3, 5, 2, 4),
		agents.Philosopher:     r(1, 3, 1, 3, 1, 3, 2, 4, 2, 4),
		agents.Unemployed:      r(1, 2, 3, 5, 1, 2, 3, 5, 3, 5),
		agents.Teacher:         r(1, 3, 1, 3, 2, 4, 1, 3, 2, 4),
		agents.Artist:          r(1, 3, 2, 4, 2, 4, 4, 5, 3, 5),
		agents.Doctor:          r(2, 4, 1, 3, 3, 5, 2, 4, 1, 2),
	}
}

func defaultInterestRanges() map[agents.Profession]map[agents.Interest]Range {
	row := func(econ, well, spirit, know, creat, soc Range) map[agents.Interest]Range {
		return map[agents.Interest]Range{
			agents.InterestEconomics:    econ,
			agents.InterestWellbeing:    well,
			agents.InterestSpirituality: spirit,
			agents.InterestKnowledge:    know,
			agents.InterestCreativity:   creat,
			agents.InterestSociety:      soc,
		}
	}
	return map[agents.Profession]map[agents.Interest]Range{
		agents.ShopClerk: row(
			Range{4.59, 5.00}, Range{0.74, 1.34}, Range{0.64, 1.24},
			Range{1.15, 1.75}, Range{1.93, 2.53}, Range{2.70, 3.30}),
		agents.Worker: row(
			Range{3.97, 4.57}, Range{1.05, 1.65}, Range{1.86, 2.46},
			Range{1.83, 2.43}, Range{0.87, 1.47}, Range{0.69, 1.29}),
		agents.Developer: row(
			Range{1.82, 2.42}, Range{1.15, 1.75}, Range{0.72, 1.32},
			Range{4.05, 4.65}, Range{2.31, 2.91}, Range{1.59, 2.19}),
		agents.Politician: row(
			Range{0.51, 1.11}, Range{1.63, 2.23}, Range{0.32, 0.92},
			Range{2.07, 2.67}, Range{1.73, 2.33}, Range{3.57, 4.17}),
		agents.Blogger: row(
			Range{1.32, 1.92}, Range{1.01, 1.61}, Range{1.20, 1.80},
			Range{1.23, 1.83}, Range{3.27, 3.87}, Range{2.43, 3.03}),
		agents.Businessman: row(
			Range{4.01, 4.61}, Range{0.76, 1.36}, Range{0.91, 1.51},
			Range{1.35, 1.95}, Range{2.04, 2.64}, Range{2.42, 3.02}),
		agents.SpiritualMentor: row(
			Range{0.62, 1.22}, Range{2.04, 2.64}, Range{3.86, 4.46},
			Range{2.11, 2.71}, Range{2.12, 2.72}, Range{1.95, 2.55}),
		agents.Philosopher: row(
			Range{1.06, 1.66}, Range{2.22, 2.82}, Range{3.71, 4.31},
			Range{3.01, 3.61}, Range{2.21, 2.81}, Range{1.80, 2.40}),
		agents.Unemployed: row(
			Range{0.72, 1.32}, Range{1.38, 1.98}, Range{3.69, 4.29},
			Range{2.15, 2.75}, Range{2.33, 2.93}, Range{2.42, 3.02}),
		agents.Teacher: row(
			Range{1.32, 1.92}, Range{2.16, 2.76}, Range{1.40, 2.00},
			Range{3.61, 4.21}, Range{1.91, 2.51}, Range{2.24, 2.84}),
		agents.Artist: row(
			Range{0.86, 1.46}, Range{0.91, 1.51}, Range{2.01, 2.61},
			Range{1.82, 2.42}, Range{3.72, 4.32}, Range{1.94, 2.54}),
		agents.Doctor: row(
			Range{1.02, 1.62}, Range{3.97, 4.57}, Range{1.37, 1.97},
			Range{2.01, 2.61}, Range{1.58, 2.18}, Range{2.45, 3.05}),
	}
}

func defaultTopicInterest() map[trends.Topic]agents.Interest {
	return map[trends.Topic]agents.Interest{
		trends.TopicEconomic:   agents.InterestEconomics,
		trends.TopicHealth:     agents.InterestWellbeing,
		trends.TopicSpiritual:  agents.InterestSpirituality,
		trends.TopicConspiracy: agents.InterestSociety,
		trends.TopicScience:    agents.InterestKnowledge,
		trends.TopicCulture:    agents.InterestCreativity,
		trends.TopicSport:      agents.InterestWellbeing,
	}
}

func defaultShopWeights() map[agents.Profession]float64 {
	return map[agents.Profession]float64{
		agents.ShopClerk:       1.1,
		agents.Worker:          1.0,
		agents.Developer:       1.2,
		agents.Politician:      1.1,
		agents.Blogger:         1.3,
		agents.Businessman:     1.5,
		agents.SpiritualMentor: 0.8,
		agents.Philosopher:     0.8,
		agents.Unemployed:      0.6,
		agents.Teacher:         0.9,
		agents.Artist:          1.0,
		agents.Doctor:          1.2,
	}
}
