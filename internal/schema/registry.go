// Copyright (C) 2025 Paper Trail Data, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package schema

import (
	"fmt"
	"sort"
)

// DefaultNullTokens match the MySQL export convention used by the DIME
// distribution: "\N" markers and empty fields are both null.
var DefaultNullTokens = []string{`\N`, ""}

// Dataset names registered out of the box.
const (
	DatasetContributions     = "dime-contributions"
	DatasetRecipients        = "dime-recipients"
	DatasetContributors      = "dime-contributors"
	DatasetVoteviewMembers   = "voteview-members"
	DatasetVoteviewRollcalls = "voteview-rollcalls"
	DatasetVoteviewVotes     = "voteview-votes"
)

// voteviewNullTokens cover the empty fields and "N/A" markers the Voteview
// exports use.
var voteviewNullTokens = []string{"", "N/A"}

var registry = map[string]*TypeConfig{}

func register(cfg *TypeConfig) {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	if _, dup := registry[cfg.Name]; dup {
		panic(fmt.Sprintf("schema: dataset %q registered twice", cfg.Name))
	}
	registry[cfg.Name] = cfg
}

// Lookup returns the registered configuration for a dataset name.
func Lookup(name string) (*TypeConfig, error) {
	cfg, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("schema: unknown dataset %q (known: %v)", name, Names())
	}
	return cfg, nil
}

// Names returns the registered dataset names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func strCols(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: TypeString}
	}
	return cols
}

func floatCols(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: TypeFloat64}
	}
	return cols
}

func init() {
	// DIME contributions: 45 columns, one row per itemized transaction.
	// IDs and codes stay strings to preserve leading zeros; only columns that
	// are genuinely numeric in every source cycle get numeric types.
	contributions := &TypeConfig{
		Name: DatasetContributions,
		Columns: concat(
			[]Column{
				{Name: "cycle", Type: TypeInt64},
				{Name: "transaction.id", Type: TypeString},
				{Name: "transaction.type", Type: TypeString},
				{Name: "amount", Type: TypeFloat64},
				{Name: "date", Type: TypeString}, // YYYY-MM-DD, kept verbatim
				{Name: "bonica.cid", Type: TypeString},
			},
			strCols(
				"contributor.name", "contributor.lname", "contributor.fname",
				"contributor.mname", "contributor.suffix", "contributor.title",
				"contributor.ffname", "contributor.type", "contributor.gender",
				"contributor.address", "contributor.city", "contributor.state",
				"contributor.zipcode", "contributor.occupation",
				"contributor.employer", "occ.standardized", "is.corp",
				"recipient.name", "bonica.rid", "recipient.party",
				"recipient.type", "recipient.state", "seat", "election.type",
			),
			[]Column{
				{Name: "gis.confidence", Type: TypeFloat64},
				{Name: "latitude", Type: TypeString},
				{Name: "longitude", Type: TypeString},
				{Name: "contributor.district", Type: TypeString},
				{Name: "censustract", Type: TypeString},
				{Name: "efec.memo", Type: TypeString},
				{Name: "efec.memo2", Type: TypeString},
				{Name: "efec.transaction.id.orig", Type: TypeString},
				{Name: "bk.ref.transaction.id", Type: TypeString},
				{Name: "efec.org.orig", Type: TypeString},
				{Name: "efec.comid.orig", Type: TypeString},
				{Name: "efec.form.type", Type: TypeString},
				{Name: "excluded.from.scaling", Type: TypeInt64},
				{Name: "contributor.cfscore", Type: TypeFloat64},
				{Name: "candidate.cfscore", Type: TypeFloat64},
			},
		),
		NullTokens:        DefaultNullTokens,
		KeyColumns:        []string{"transaction.id", "bonica.cid", "contributor.name", "amount"},
		ChecksumColumn:    "amount",
		DefaultSampleSize: 2000,
		Encoding:          EncodingLatin1,
	}
	register(contributions)

	// DIME recipients: 66 columns, one row per candidate/committee per cycle.
	// Count-like columns are float64 because they are nullable in the source.
	recipients := &TypeConfig{
		Name: DatasetRecipients,
		Columns: concat(
			strCols(
				"election", "bonica.rid", "bonica.cid", "name", "lname",
				"ffname", "fname", "mname", "title", "suffix", "party",
				"state", "seat", "district", "distcyc", "ico.status",
				"cand.gender", "pwinner", "gwinner", "s.elec.stat",
				"r.elec.stat", "fec.cand.status", "recipient.type", "igcat",
				"comtype", "ICPSR", "ICPSR2", "Cand.ID", "FEC.ID", "NID",
				"before.switch.ICPSR", "after.switch.ICPSR", "party.orig",
				"nimsp.party", "nimsp.candidate.ICO.code", "nimsp.district",
				"nimsp.office", "nimsp.candidate.status", "included_in_scaling",
			),
			floatCols(
				"cycle", "fecyear", "num.givers", "num.givers.total",
				"recipient.cfscore", "recipient.cfscore.dyn",
				"contributor.cfscore", "dwdime", "dwnom1", "dwnom2",
				"ps.dwnom1", "ps.dwnom2", "irt.cfscore", "composite.score",
				"total.receipts", "total.disbursements",
				"total.indiv.contribs", "total.unitemized",
				"total.pac.contribs", "total.party.contribs",
				"total.contribs.from.candidate", "ind.exp.support",
				"ind.exp.oppose", "prim.vote.pct", "gen.vote.pct",
				"district.pres.vs",
			),
		),
		NullTokens:        DefaultNullTokens,
		KeyColumns:        []string{"bonica.rid", "bonica.cid", "name"},
		ChecksumColumn:    "recipient.cfscore",
		DefaultSampleSize: 500,
		Encoding:          EncodingLatin1,
	}
	register(recipients)

	// DIME contributors: one row per donor, with per-cycle amount columns
	// for each biennial election year 1980-2024.
	contributorCols := concat(
		strCols(
			"bonica.cid", "contributor.type",
			"most.recent.contributor.name",
			"most.recent.contributor.address",
			"most.recent.contributor.city",
			"most.recent.contributor.zipcode",
			"most.recent.contributor.state",
			"most.recent.contributor.occupation",
			"most.recent.contributor.employer",
			"most.recent.transaction.id",
			"most.recent.transaction.date",
			"contributor.gender", "is.corp", "is.projected",
		),
		floatCols(
			"num.distinct",
			"most.recent.contributor.latitude",
			"most.recent.contributor.longitude",
			"contributor.cfscore",
			"first_cycle_active", "last_cycle_active",
		),
	)
	for year := 1980; year <= 2024; year += 2 {
		contributorCols = append(contributorCols, Column{
			Name: fmt.Sprintf("amount.%d", year),
			Type: TypeFloat64,
		})
	}
	contributors := &TypeConfig{
		Name:              DatasetContributors,
		Columns:           contributorCols,
		NullTokens:        DefaultNullTokens,
		KeyColumns:        []string{"bonica.cid", "most.recent.contributor.name"},
		ChecksumColumn:    "contributor.cfscore",
		DefaultSampleSize: 1000,
		Encoding:          EncodingLatin1,
	}
	register(contributors)

	// Voteview HSall members: one row per legislator per congress. Nullable
	// integer-valued columns are declared float64 since the CSV carries them
	// with float notation ("4.0").
	members := &TypeConfig{
		Name: DatasetVoteviewMembers,
		Columns: concat(
			[]Column{
				{Name: "congress", Type: TypeInt64},
				{Name: "chamber", Type: TypeString},
				{Name: "icpsr", Type: TypeInt64},
			},
			floatCols("state_icpsr", "district_code"),
			strCols("state_abbrev"),
			floatCols("party_code", "occupancy", "last_means"),
			strCols("bioname", "bioguide_id"),
			floatCols(
				"born", "died",
				"nominate_dim1", "nominate_dim2",
				"nominate_log_likelihood", "nominate_geo_mean_probability",
				"nominate_number_of_votes", "nominate_number_of_errors",
				"conditional",
				"nokken_poole_dim1", "nokken_poole_dim2",
			),
		),
		NullTokens:        voteviewNullTokens,
		KeyColumns:        []string{"icpsr", "congress", "chamber", "bioname"},
		ChecksumColumn:    "nominate_number_of_votes",
		DefaultSampleSize: 1000,
	}
	register(members)

	// Voteview HSall rollcalls: one row per recorded vote event.
	rollcalls := &TypeConfig{
		Name: DatasetVoteviewRollcalls,
		Columns: concat(
			[]Column{
				{Name: "congress", Type: TypeInt64},
				{Name: "chamber", Type: TypeString},
				{Name: "rollnumber", Type: TypeInt64},
				{Name: "date", Type: TypeString}, // YYYY-MM-DD, kept verbatim
			},
			floatCols("session", "clerk_rollnumber"),
			[]Column{
				{Name: "yea_count", Type: TypeInt64},
				{Name: "nay_count", Type: TypeInt64},
			},
			floatCols(
				"nominate_mid_1", "nominate_mid_2",
				"nominate_spread_1", "nominate_spread_2",
				"nominate_log_likelihood",
			),
			strCols("bill_number", "vote_result", "vote_desc", "vote_question", "dtl_desc"),
		),
		NullTokens:        voteviewNullTokens,
		KeyColumns:        []string{"congress", "chamber", "rollnumber", "date"},
		ChecksumColumn:    "yea_count",
		DefaultSampleSize: 1000,
	}
	register(rollcalls)

	// Voteview HSall votes: one row per member per rollcall, tens of millions
	// of rows. rollnumber/icpsr/cast_code arrive with float notation
	// ("10713.0") so they stay float64 despite being integer-valued.
	votes := &TypeConfig{
		Name: DatasetVoteviewVotes,
		Columns: concat(
			[]Column{
				{Name: "congress", Type: TypeInt64},
				{Name: "chamber", Type: TypeString},
			},
			floatCols("rollnumber", "icpsr", "cast_code", "prob"),
		),
		NullTokens:        voteviewNullTokens,
		KeyColumns:        []string{"congress", "chamber", "rollnumber", "icpsr", "cast_code"},
		ChecksumColumn:    "cast_code",
		DefaultSampleSize: 2000,
	}
	register(votes)
}

func concat(groups ...[]Column) []Column {
	var out []Column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
