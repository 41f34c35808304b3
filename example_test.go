// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow_test

import (
	"fmt"
	"os"
	"strings"

	"github.com/petenewcomb/simflow"
)

func ExampleResolvePartitionFactors() {
	for _, c := range []simflow.Communication{
		simflow.CommunicationModel,
		simflow.CommunicationData,
		simflow.CommunicationHybridDataModel,
	} {
		kp1, kp2, err := simflow.ResolvePartitionFactors(simflow.ParallelismRC, c, 16)
		fmt.Println(c, kp1, kp2, err)
	}

	// Output:
	// MODEL 1 16 <nil>
	// DATA 16 1 <nil>
	// HYBRID_DATA_MODEL 2 8 <nil>
}

// Translates a single report and prints the trace record's fields.
func ExampleTranslator_ParseReport() {
	tr, err := simflow.NewTranslator(simflow.Strategy{
		Parallelism:   simflow.ParallelismRC,
		Communication: simflow.CommunicationModel,
		NPUs:          16,
	})
	if err != nil {
		panic(err)
	}
	m, _ := tr.ParseReport(reportLines(sampleReport))
	fmt.Println(strings.Join(strings.Fields(m.Line()), " "))

	// Output:
	// layer1 -1 150 ALLGATHER 536870912 300 ALLREDUCE 1073741824 50 NONE 0 10
}

func ExampleRingTopology() {
	text, err := simflow.RingTopology(4, simflow.DefaultRingBandwidth, simflow.DefaultRingLatency, simflow.DefaultRingErrorRate)
	if err != nil {
		panic(err)
	}
	fmt.Print(text)

	// Output:
	// 4 0 4
	//
	// 0 1 25Gbps 0.005ms 0
	// 1 2 25Gbps 0.005ms 0
	// 2 3 25Gbps 0.005ms 0
	// 3 0 25Gbps 0.005ms 0
}

func ExampleWorkloadTrace_WriteTo() {
	trace := &simflow.WorkloadTrace{
		Communication: simflow.CommunicationData,
		Lines:         []string{"layer1\t-1", "layer1\t-1"},
	}
	if _, err := trace.WriteTo(os.Stdout); err != nil {
		panic(err)
	}

	// Output:
	// DATA
	// 2
	// layer1	-1
	// layer1	-1
}
