// Package smoketest validates a saved inference package the way the host
// application would consume it: it reloads the package and the JSON side
// tables from disk, runs one sample sentence through the packaged graph and
// decodes the logits into (token, label, confidence) triples.
package smoketest

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/openpharma/nerpack/backends"
	"github.com/openpharma/nerpack/convert"
	"github.com/openpharma/nerpack/mlpackage"
	"github.com/openpharma/nerpack/util/fileutil"
	"github.com/openpharma/nerpack/util/vectorutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultSampleText is the fixed pharmaceutical example sentence.
	DefaultSampleText = "Take 25mg of Lisinopril twice daily for hypertension"
	// DefaultThreshold is the minimum confidence for a token to be reported
	// as an entity.
	DefaultThreshold float32 = 0.5
	// OutsideLabel is the "no entity" class.
	OutsideLabel = "O"
)

// Config parameterizes one smoke-test run. A zero Threshold is honored
// literally (every non-outside token is reported); a negative value selects
// DefaultThreshold.
type Config struct {
	PackagePath       string
	LabelsPath        string
	SpecialTokensPath string
	Tokenizer         *backends.Tokenizer
	SampleText        string
	Threshold         float32
}

// TokenPrediction is the decoded classification of one token.
type TokenPrediction struct {
	Token      string
	Label      string
	Confidence float32
}

// Report is the outcome of a smoke-test run. A failed run carries the error
// and generic remediation hints; it never aborts the process.
type Report struct {
	SampleText  string
	Threshold   float32
	Predictions []TokenPrediction
	Entities    []TokenPrediction
	Failed      bool
	Err         error
	Hints       []string
}

var failureHints = []string{
	"Input shape mismatch",
	"Model conversion issues",
	"Package runtime compatibility problems",
}

// Run reloads the package and side tables and tests one example input.
// All errors are contained in the report.
func Run(cfg Config) *Report {
	if cfg.SampleText == "" {
		cfg.SampleText = DefaultSampleText
	}
	if cfg.Threshold < 0 {
		cfg.Threshold = DefaultThreshold
	}
	report := &Report{SampleText: cfg.SampleText, Threshold: cfg.Threshold}

	id2label, err := readLabels(cfg.LabelsPath)
	if err != nil {
		return report.fail(err)
	}
	var specialTokens convert.SpecialTokensFile
	if err := readJSON(cfg.SpecialTokensPath, &specialTokens); err != nil {
		return report.fail(err)
	}

	pkg, err := mlpackage.Load(cfg.PackagePath)
	if err != nil {
		return report.fail(err)
	}
	// pad to the package's declared input length, which may be shorter than
	// the tokenizer's max_length
	seqLen, err := deploymentLength(pkg)
	if err != nil {
		return report.fail(err)
	}

	if cfg.Tokenizer == nil {
		return report.fail(errors.New("no tokenizer available to encode the sample text"))
	}
	input, err := backends.Encode(cfg.Tokenizer, cfg.SampleText)
	if err != nil {
		return report.fail(err)
	}
	inputIDs, attentionMask := padToLength(input, seqLen, int32(specialTokens.PadTokenID))

	logits, err := pkg.Predict(inputIDs, attentionMask)
	if err != nil {
		return report.fail(err)
	}
	if len(logits) == 0 {
		return report.fail(fmt.Errorf("packaged graph produced an empty batch"))
	}

	predictions, entities, err := Decode(input, logits[0], id2label, cfg.Threshold)
	if err != nil {
		return report.fail(err)
	}
	report.Predictions = predictions
	report.Entities = entities
	return report
}

// deploymentLength reads the fixed sequence length from the package's
// declared input_ids shape.
func deploymentLength(pkg *mlpackage.Package) (int, error) {
	spec, ok := pkg.InputSpec("input_ids")
	if !ok {
		return 0, errors.New("package declares no input_ids input")
	}
	if len(spec.Shape) != 2 || spec.Shape[1] <= 0 {
		return 0, fmt.Errorf("package input_ids has unexpected shape %v", spec.Shape)
	}
	return int(spec.Shape[1]), nil
}

func (r *Report) fail(err error) *Report {
	r.Failed = true
	r.Err = err
	r.Hints = failureHints
	return r
}

// Decode selects the highest-scoring class per non-special token and
// normalizes its confidence with a softmax over that position's scores.
// Entities are the tokens whose label is not the outside class and whose
// confidence exceeds the threshold.
func Decode(input backends.TokenizedInput, logits [][]float32, id2label map[int]string, threshold float32) ([]TokenPrediction, []TokenPrediction, error) {
	var predictions, entities []TokenPrediction
	for pos, token := range input.Tokens {
		if input.SpecialTokensMask[pos] > 0 {
			continue
		}
		if pos >= len(logits) {
			return nil, nil, fmt.Errorf("logits cover %d positions but token %d was requested", len(logits), pos)
		}
		scores := vectorutil.SoftMax(logits[pos])
		labelID, confidence, err := vectorutil.ArgMax(scores)
		if err != nil {
			return nil, nil, err
		}
		label, ok := id2label[labelID]
		if !ok {
			return nil, nil, fmt.Errorf("predicted label id %d is not in the label table", labelID)
		}
		prediction := TokenPrediction{Token: token, Label: label, Confidence: confidence}
		predictions = append(predictions, prediction)
		if label != OutsideLabel && confidence > threshold {
			entities = append(entities, prediction)
		}
	}
	return predictions, entities, nil
}

// padToLength right-pads the encoded input to the deployment length with
// the pad token id and a zeroed attention mask, truncating if longer.
func padToLength(input backends.TokenizedInput, seqLen int, padID int32) ([]int32, []int32) {
	inputIDs := make([]int32, seqLen)
	attentionMask := make([]int32, seqLen)
	for i := range seqLen {
		if i < len(input.TokenIDs) {
			inputIDs[i] = int32(input.TokenIDs[i])
			attentionMask[i] = int32(input.AttentionMask[i])
		} else {
			inputIDs[i] = padID
		}
	}
	return inputIDs, attentionMask
}

func readLabels(path string) (map[int]string, error) {
	var labels struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := readJSON(path, &labels); err != nil {
		return nil, err
	}
	id2label := make(map[int]string, len(labels.ID2Label))
	for k, v := range labels.ID2Label {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("labels.json has non-integer id %q: %w", k, err)
		}
		id2label[id] = v
	}
	if len(id2label) == 0 {
		return nil, fmt.Errorf("labels.json holds no labels")
	}
	return id2label, nil
}

func readJSON(path string, v any) error {
	data, err := fileutil.ReadFileBytes(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Print writes the human-readable report.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "\nTesting with sample text: %q\n", r.SampleText)
	if r.Failed {
		fmt.Fprintf(w, "Prediction failed: %s\n", r.Err)
		fmt.Fprintln(w, "This might indicate:")
		for _, hint := range r.Hints {
			fmt.Fprintf(w, "- %s\n", hint)
		}
		return
	}
	fmt.Fprintln(w, "\nToken predictions:")
	fmt.Fprintln(w, "--------------------------------------------------")
	for _, p := range r.Predictions {
		fmt.Fprintf(w, "%-15s -> %-20s (confidence: %.3f)\n", p.Token, p.Label, p.Confidence)
	}
	fmt.Fprintf(w, "\nEntities found: %d\n", len(r.Entities))
	for _, e := range r.Entities {
		fmt.Fprintf(w, "  %q -> %s (%.3f)\n", e.Token, e.Label, e.Confidence)
	}
	if len(r.Entities) == 0 {
		fmt.Fprintln(w, "  No high-confidence entities detected")
		fmt.Fprintln(w, "  This might indicate:")
		fmt.Fprintln(w, "  - Model needs fine-tuning on prescription text")
		fmt.Fprintln(w, "  - Confidence threshold is too high")
		fmt.Fprintln(w, "  - Text format differs from training data")
	}
}
