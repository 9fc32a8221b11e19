// Package taxonomy defines the closed demographic vocabularies shared by the
// request layer, the corpus loader and the result ranker. Buckets are fixed
// enumerations with an explicit unknown case; free-form input maps through an
// embedded alias table and anything unrecognized becomes unknown, never an
// error.
package taxonomy

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed buckets.yaml
var bucketsYAML []byte

// AgeBucket is a coarse age group attached to corpus records and query hints.
type AgeBucket string

const (
	AgeUnknown    AgeBucket = "unknown"
	AgeInfant     AgeBucket = "infant"
	AgeChild      AgeBucket = "child"
	AgeAdolescent AgeBucket = "adolescent"
	AgeYoungAdult AgeBucket = "young_adult"
	AgeAdult      AgeBucket = "adult"
	AgeMiddleAged AgeBucket = "middle_aged"
	AgeSenior     AgeBucket = "senior"
)

// EthnicityBucket is a coarse self-reported ethnicity group. The set follows
// the labeling scheme of the reference case archive.
type EthnicityBucket string

const (
	EthnicityUnknown         EthnicityBucket = "unknown"
	EthnicityAfrican         EthnicityBucket = "african"
	EthnicityEastAsian       EthnicityBucket = "east_asian"
	EthnicitySouthAsian      EthnicityBucket = "south_asian"
	EthnicityHispanic        EthnicityBucket = "hispanic"
	EthnicityMiddleEastern   EthnicityBucket = "middle_eastern"
	EthnicityPacificIslander EthnicityBucket = "pacific_islander"
	EthnicityWhite           EthnicityBucket = "white"
	EthnicityMultiracial     EthnicityBucket = "multiracial"
)

var ageBuckets = []AgeBucket{
	AgeInfant,
	AgeChild,
	AgeAdolescent,
	AgeYoungAdult,
	AgeAdult,
	AgeMiddleAged,
	AgeSenior,
}

var ethnicityBuckets = []EthnicityBucket{
	EthnicityAfrican,
	EthnicityEastAsian,
	EthnicitySouthAsian,
	EthnicityHispanic,
	EthnicityMiddleEastern,
	EthnicityPacificIslander,
	EthnicityWhite,
	EthnicityMultiracial,
}

// ageLookup and ethnicityLookup map normalized strings (canonical names plus
// aliases) to buckets. Built once at package init from the embedded table.
var (
	ageLookup       map[string]AgeBucket
	ethnicityLookup map[string]EthnicityBucket
)

type aliasFile struct {
	AgeAliases       map[string][]string `yaml:"age_aliases"`
	EthnicityAliases map[string][]string `yaml:"ethnicity_aliases"`
}

func init() {
	var file aliasFile
	if err := yaml.Unmarshal(bucketsYAML, &file); err != nil {
		// Embedded file, cannot fail for a correct build.
		panic("failed to unmarshal embedded buckets.yaml: " + err.Error())
	}

	ageLookup = make(map[string]AgeBucket)
	for _, b := range ageBuckets {
		ageLookup[string(b)] = b
	}
	for name, aliases := range file.AgeAliases {
		bucket, ok := ageLookup[name]
		if !ok {
			panic(fmt.Sprintf("buckets.yaml references unknown age bucket %q", name))
		}
		for _, alias := range aliases {
			ageLookup[Normalize(alias)] = bucket
		}
	}

	ethnicityLookup = make(map[string]EthnicityBucket)
	for _, b := range ethnicityBuckets {
		ethnicityLookup[string(b)] = b
	}
	for name, aliases := range file.EthnicityAliases {
		bucket, ok := ethnicityLookup[name]
		if !ok {
			panic(fmt.Sprintf("buckets.yaml references unknown ethnicity bucket %q", name))
		}
		for _, alias := range aliases {
			ethnicityLookup[Normalize(alias)] = bucket
		}
	}
}

// ParseAge maps a free-form age string to a bucket. Unrecognized or empty
// input yields AgeUnknown.
func ParseAge(s string) AgeBucket {
	if b, ok := ageLookup[Normalize(s)]; ok {
		return b
	}
	return AgeUnknown
}

// ParseEthnicity maps a free-form ethnicity string to a bucket. Unrecognized
// or empty input yields EthnicityUnknown.
func ParseEthnicity(s string) EthnicityBucket {
	if b, ok := ethnicityLookup[Normalize(s)]; ok {
		return b
	}
	return EthnicityUnknown
}

// AgeBuckets returns the canonical age buckets in display order, without the
// unknown case.
func AgeBuckets() []AgeBucket {
	out := make([]AgeBucket, len(ageBuckets))
	copy(out, ageBuckets)
	return out
}

// EthnicityBuckets returns the canonical ethnicity buckets in display order,
// without the unknown case.
func EthnicityBuckets() []EthnicityBucket {
	out := make([]EthnicityBucket, len(ethnicityBuckets))
	copy(out, ethnicityBuckets)
	return out
}

// Known reports whether the bucket carries information.
func (b AgeBucket) Known() bool { return b != AgeUnknown && b != "" }

// Known reports whether the bucket carries information.
func (b EthnicityBucket) Known() bool { return b != EthnicityUnknown && b != "" }

// Hint is the optional demographic context of a query. Zero value means no
// hint at all.
type Hint struct {
	Age       AgeBucket
	Ethnicity EthnicityBucket
}

// ParseHint builds a Hint from free-form request strings.
func ParseHint(age, ethnicity string) Hint {
	return Hint{
		Age:       ParseAge(age),
		Ethnicity: ParseEthnicity(ethnicity),
	}
}

// Empty reports whether the hint carries no known field.
func (h Hint) Empty() bool {
	return !h.Age.Known() && !h.Ethnicity.Known()
}

// Matches reports whether a record tagged (age, ethnicity) matches the hint.
// Every known hint field must equal the record tag; an empty hint matches
// nothing, so it never triggers a ranking boost.
func (h Hint) Matches(age AgeBucket, ethnicity EthnicityBucket) bool {
	if h.Empty() {
		return false
	}
	if h.Age.Known() && h.Age != age {
		return false
	}
	if h.Ethnicity.Known() && h.Ethnicity != ethnicity {
		return false
	}
	return true
}
