// Package covariance computes the coefficient covariance matrix of a least
// squares fit under one of a closed set of policies: the classical estimate,
// the White HC0-HC4 family, Newey-West HAC and one- or two-way cluster-robust
// sandwiches.
package covariance

import (
	"fmt"
	"strings"
)

// Policy selects the covariance estimator. The set of implementations is
// closed; Compute handles every one of them.
type Policy interface {
	fmt.Stringer
	policy()
}

// NonRobust is s^2 (X'X)^-1 with s^2 = e'e / (n-k).
type NonRobust struct{}

// HC0 is the White sandwich without small-sample correction.
type HC0 struct{}

// HC1 is HC0 scaled by n/(n-k).
type HC1 struct{}

// HC2 weights each squared residual by 1/(1-h_i).
type HC2 struct{}

// HC3 weights each squared residual by 1/(1-h_i)^2.
type HC3 struct{}

// HC4 weights each squared residual by 1/(1-h_i)^d_i, d_i = min(4, n*h_i/k).
type HC4 struct{}

// NeweyWest is the Bartlett-kernel HAC estimator. Rows are taken to be in
// time order.
type NeweyWest struct {
	Lags int
}

// Clustered is the one-way cluster-robust estimator; IDs has one entry per
// observation.
type Clustered struct {
	IDs []int
}

// ClusteredTwoWay combines two clusterings as V1 + V2 - V12.
type ClusteredTwoWay struct {
	IDs1 []int
	IDs2 []int
}

func (NonRobust) policy()       {}
func (HC0) policy()             {}
func (HC1) policy()             {}
func (HC2) policy()             {}
func (HC3) policy()             {}
func (HC4) policy()             {}
func (NeweyWest) policy()       {}
func (Clustered) policy()       {}
func (ClusteredTwoWay) policy() {}

func (NonRobust) String() string { return "NonRobust" }
func (HC0) String() string       { return "HC0" }
func (HC1) String() string       { return "HC1" }
func (HC2) String() string       { return "HC2" }
func (HC3) String() string       { return "HC3" }
func (HC4) String() string       { return "HC4" }

func (p NeweyWest) String() string { return fmt.Sprintf("NeweyWest(L=%d)", p.Lags) }

func (p Clustered) String() string { return fmt.Sprintf("Clustered(G=%d)", countClusters(p.IDs)) }

func (p ClusteredTwoWay) String() string {
	return fmt.Sprintf("ClusteredTwoWay(G1=%d, G2=%d)", countClusters(p.IDs1), countClusters(p.IDs2))
}

func countClusters(ids []int) int {
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// Kinds lists the names accepted by FromName, lower case.
var Kinds = []string{"nonrobust", "hc0", "hc1", "hc2", "hc3", "hc4", "neweywest", "cluster", "twoway"}

// KnownKind reports whether FromName accepts kind.
func KnownKind(kind string) bool {
	kind = strings.ToLower(strings.TrimSpace(kind))
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// FromName builds a policy from its configuration name. lags is used by
// "neweywest", ids1 by "cluster", ids1 and ids2 by "twoway". An empty kind
// selects NonRobust.
func FromName(kind string, lags int, ids1, ids2 []int) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "nonrobust":
		return NonRobust{}, nil
	case "hc0":
		return HC0{}, nil
	case "hc1":
		return HC1{}, nil
	case "hc2":
		return HC2{}, nil
	case "hc3":
		return HC3{}, nil
	case "hc4":
		return HC4{}, nil
	case "neweywest":
		return NeweyWest{Lags: lags}, nil
	case "cluster":
		if ids1 == nil {
			return nil, fmt.Errorf("covariance %q needs cluster ids", kind)
		}
		return Clustered{IDs: ids1}, nil
	case "twoway":
		if ids1 == nil || ids2 == nil {
			return nil, fmt.Errorf("covariance %q needs two cluster id vectors", kind)
		}
		return ClusteredTwoWay{IDs1: ids1, IDs2: ids2}, nil
	default:
		return nil, fmt.Errorf("unknown covariance type %q (want one of %s)", kind, strings.Join(Kinds, ", "))
	}
}
