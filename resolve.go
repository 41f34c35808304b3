// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow

import (
	"fmt"
)

// Strategy is the immutable parallelism choice for a run.
type Strategy struct {
	Parallelism   Parallelism
	Communication Communication
	NPUs          int
}

// PartitionFactors resolves the strategy's kp1 and kp2 factors.
func (s Strategy) PartitionFactors() (int, int, error) {
	return ResolvePartitionFactors(s.Parallelism, s.Communication, s.NPUs)
}

// Collective resolves the collective operation used in the given phase.
func (s Strategy) Collective(phase Phase) (Collective, error) {
	return ResolveCollective(s.Parallelism, s.Communication, phase)
}

// Validate resolves the partition factors and every phase's collective,
// returning the first failure.
func (s Strategy) Validate() error {
	if _, _, err := s.PartitionFactors(); err != nil {
		return err
	}
	for _, phase := range []Phase{PhaseForward, PhaseInput, PhaseWeight} {
		if _, err := s.Collective(phase); err != nil {
			return err
		}
	}
	return nil
}

// ResolvePartitionFactors maps a strategy onto the two partition factors
// passed to the performance tool as kp1 and kp2.
//
//	RC + MODEL             -> (1, n)
//	RC + DATA              -> (n, 1)
//	RC + HYBRID_DATA_MODEL -> (2, n/2), n must be even
//
// Anything else fails with [ErrUnsupportedConfiguration], which also matches
// [ErrConfiguration].
func ResolvePartitionFactors(p Parallelism, c Communication, numUnits int) (int, int, error) {
	if numUnits < 1 {
		return 0, 0, fmt.Errorf("%w: unit count %d is not positive", ErrConfiguration, numUnits)
	}
	if p != ParallelismRC {
		return 0, 0, fmt.Errorf("%w: parallelism %v", ErrUnsupportedConfiguration, p)
	}
	switch c {
	case CommunicationModel:
		return 1, numUnits, nil
	case CommunicationData:
		return numUnits, 1, nil
	case CommunicationHybridDataModel:
		if numUnits%2 != 0 {
			return 0, 0, fmt.Errorf("%w: hybrid data/model parallelism needs an even unit count, got %d",
				ErrConfiguration, numUnits)
		}
		return 2, numUnits / 2, nil
	default:
		return 0, 0, fmt.Errorf("%w: communication %v with parallelism %v", ErrUnsupportedConfiguration, c, p)
	}
}

var collectiveTable = map[Communication][3]Collective{
	CommunicationModel:           {CollectiveAllGather, CollectiveAllReduce, CollectiveNone},
	CommunicationData:            {CollectiveNone, CollectiveNone, CollectiveAllReduce},
	CommunicationHybridDataModel: {CollectiveAllGather, CollectiveAllReduce, CollectiveAllReduce},
}

// ResolveCollective returns the collective operation a phase performs under
// the given strategy.
func ResolveCollective(p Parallelism, c Communication, phase Phase) (Collective, error) {
	if p != ParallelismRC {
		return 0, fmt.Errorf("%w: parallelism %v", ErrUnsupportedConfiguration, p)
	}
	row, ok := collectiveTable[c]
	if !ok {
		return 0, fmt.Errorf("%w: communication %v", ErrUnsupportedConfiguration, c)
	}
	if phase < PhaseForward || phase > PhaseWeight {
		return 0, fmt.Errorf("%w: phase %v", ErrUnsupportedConfiguration, phase)
	}
	return row[phase-PhaseForward], nil
}
