package arrow_client

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-testfloat/internal/fenv"
	"github.com/23skdu/longbow-testfloat/internal/fpbits"
	"github.com/23skdu/longbow-testfloat/internal/verify"
)

var schemaMetadata = arrow.NewMetadata([]string{"producer"}, []string{"testfloat"})

// ErrorSchema is the column layout of exported error records. Values are
// raw bit patterns so NaN payloads and signed zeros survive the trip.
var ErrorSchema = arrow.NewSchema([]arrow.Field{
	{Name: "run_id", Type: arrow.BinaryTypes.String},
	{Name: "op", Type: arrow.BinaryTypes.String},
	{Name: "format", Type: arrow.BinaryTypes.String},
	{Name: "mode", Type: arrow.BinaryTypes.String},
	{Name: "number", Type: arrow.PrimitiveTypes.Int64},
	{Name: "window_index", Type: arrow.PrimitiveTypes.Int64},
	{Name: "operands", Type: arrow.ListOf(arrow.PrimitiveTypes.Uint64)},
	{Name: "true_bits", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "true_flags", Type: arrow.PrimitiveTypes.Uint8},
	{Name: "test_bits", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "test_flags", Type: arrow.PrimitiveTypes.Uint8},
}, &schemaMetadata)

// Row is one error record tagged with the run that produced it.
type Row struct {
	RunID string
	Mode  string
	verify.ErrorRecord
}

// BuildRecord packs rows into a record batch. The caller releases it.
func BuildRecord(mem memory.Allocator, rows []Row) arrow.Record {
	b := array.NewRecordBuilder(mem, ErrorSchema)
	defer b.Release()
	b.Reserve(len(rows))

	runID := b.Field(0).(*array.StringBuilder)
	op := b.Field(1).(*array.StringBuilder)
	format := b.Field(2).(*array.StringBuilder)
	mode := b.Field(3).(*array.StringBuilder)
	number := b.Field(4).(*array.Int64Builder)
	index := b.Field(5).(*array.Int64Builder)
	operands := b.Field(6).(*array.ListBuilder)
	operandValues := operands.ValueBuilder().(*array.Uint64Builder)
	trueBits := b.Field(7).(*array.Uint64Builder)
	trueFlags := b.Field(8).(*array.Uint8Builder)
	testBits := b.Field(9).(*array.Uint64Builder)
	testFlags := b.Field(10).(*array.Uint8Builder)

	for _, r := range rows {
		runID.Append(r.RunID)
		op.Append(r.Op)
		format.Append(r.Format.Name)
		mode.Append(r.Mode)
		number.Append(r.Number)
		index.Append(r.Index)
		operands.Append(true)
		operandValues.AppendValues(r.Operands, nil)
		trueBits.Append(r.True)
		trueFlags.Append(uint8(r.TrueFlags))
		testBits.Append(r.Test)
		testFlags.Append(uint8(r.TestFlags))
	}
	return b.NewRecord()
}

// DecodeRows unpacks a record batch written with ErrorSchema.
func DecodeRows(rec arrow.Record) ([]Row, error) {
	if !rec.Schema().Equal(ErrorSchema) {
		return nil, fmt.Errorf("unexpected schema: %s", rec.Schema())
	}

	runID := rec.Column(0).(*array.String)
	op := rec.Column(1).(*array.String)
	format := rec.Column(2).(*array.String)
	mode := rec.Column(3).(*array.String)
	number := rec.Column(4).(*array.Int64)
	index := rec.Column(5).(*array.Int64)
	operands := rec.Column(6).(*array.List)
	operandValues := operands.ListValues().(*array.Uint64)
	trueBits := rec.Column(7).(*array.Uint64)
	trueFlags := rec.Column(8).(*array.Uint8)
	testBits := rec.Column(9).(*array.Uint64)
	testFlags := rec.Column(10).(*array.Uint8)

	rows := make([]Row, int(rec.NumRows()))
	for i := range rows {
		f, err := fpbits.ParseFormat(format.Value(i))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		start, end := operands.ValueOffsets(i)
		ops := make([]uint64, 0, end-start)
		for j := start; j < end; j++ {
			ops = append(ops, operandValues.Value(int(j)))
		}
		rows[i] = Row{
			RunID: runID.Value(i),
			Mode:  mode.Value(i),
			ErrorRecord: verify.ErrorRecord{
				Op:        op.Value(i),
				Format:    f,
				Operands:  ops,
				True:      trueBits.Value(i),
				TrueFlags: fenv.Flags(trueFlags.Value(i)),
				Test:      testBits.Value(i),
				TestFlags: fenv.Flags(testFlags.Value(i)),
				Index:     index.Value(i),
				Number:    number.Value(i),
			},
		}
	}
	return rows, nil
}
