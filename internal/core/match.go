package core

// Match pairs every record with every transition strictly inside its
// frequency window. A record covering several transitions appears once per
// transition. Records with unknown bounds never match.
func Match(obs Observations, transitions TransitionTable) Matches {
	out := Matches{Schema: obs.Schema}
	for _, tr := range transitions {
		for _, rec := range obs.Records {
			if rec.Covers(tr.FreqGHz) {
				out.Records = append(out.Records, MatchRecord{ObservationRecord: rec, Transition: tr})
			}
		}
	}
	return out
}

// CountBySource returns match counts keyed by source name.
func (m Matches) CountBySource() map[string]int {
	out := make(map[string]int)
	for _, r := range m.Records {
		out[r.Source]++
	}
	return out
}
