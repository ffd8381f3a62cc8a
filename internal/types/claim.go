/*

This file contains the claim-kind descriptor shared by the settlement paths.

The engine settles both derivative tokens through a single routine
parameterized by ClaimKind, so the par and leveraged paths cannot drift apart.

*/

package types

import "fmt"

// ClaimKind identifies which of the two derivative claims an operation
// settles against.
type ClaimKind uint8

const (
	// ClaimPar is the stability-seeking claim pegged 1:1 to the reference unit.
	ClaimPar ClaimKind = iota
	// ClaimLeveraged is the residual claim absorbing reserve value above par
	// liabilities.
	ClaimLeveraged
)

func (k ClaimKind) String() string {
	switch k {
	case ClaimPar:
		return "par"
	case ClaimLeveraged:
		return "leveraged"
	default:
		return fmt.Sprintf("claim(%d)", uint8(k))
	}
}

// Valid reports whether k names one of the two supported claims.
func (k ClaimKind) Valid() bool {
	return k == ClaimPar || k == ClaimLeveraged
}
