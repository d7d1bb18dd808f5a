// Package operations is the catalog of AWS operations the agent can run: AWS Backup
// administration plus the S3, RDS and EC2 inventory lookups that feed it.
package operations

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/morezero/backup-assistant/pkg/awsapi"
	"github.com/morezero/backup-assistant/pkg/capability"
)

const logPrefix = "operations:catalog"

// Clients hands out region-scoped service clients. *awsapi.Provider implements it.
type Clients interface {
	Backup(ctx context.Context, region string) (awsapi.BackupAPI, error)
	S3(ctx context.Context, region string) (awsapi.S3API, error)
	RDS(ctx context.Context, region string) (awsapi.RDSAPI, error)
	EC2(ctx context.Context, region string) (awsapi.EC2API, error)
}

// Codes of conditions detected by the operations themselves rather than the remote
// API. They are classified like AWS error codes.
const (
	CodeVaultNotFound      = "BackupVaultNotFound"
	CodePlanNotFound       = "BackupPlanNotFound"
	CodeSelectionNotFound  = "BackupSelectionNotFound"
	CodeLegalHoldNotFound  = "LegalHoldNotFound"
	CodeRecoveryPointsHeld = "RecoveryPointsExist"
)

// Catalog returns every operation. Names are unique across services.
func Catalog(c Clients) []*capability.Operation {
	var ops []*capability.Operation
	ops = append(ops, withService(serviceBackup, backupOperations(c))...)
	ops = append(ops, withService(serviceS3, s3Operations(c))...)
	ops = append(ops, withService(serviceRDS, rdsOperations(c))...)
	ops = append(ops, withService(serviceEC2, ec2Operations(c))...)
	return ops
}

func withService(service string, ops []*capability.Operation) []*capability.Operation {
	for _, op := range ops {
		op.Service = service
	}
	return ops
}

// NewRegistry builds the registry over the full catalog.
func NewRegistry(c Clients) (*capability.Registry, error) {
	reg, err := capability.NewRegistry(Catalog(c)...)
	if err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	return reg, nil
}

// call adapts a typed SDK method to an ExecuteFunc. The payload is decoded into the
// SDK input struct and the output is encoded back to a Payload.
func call[C, In, Out, O any](
	resolve func(ctx context.Context, region string) (C, error),
	method func(C, context.Context, *In, ...func(*O)) (*Out, error),
) capability.ExecuteFunc {
	return func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
		var in In
		if err := req.Payload.Decode(&in); err != nil {
			return nil, err
		}
		out, err := invoke(ctx, req.Region, resolve, method, &in)
		if err != nil {
			return nil, err
		}
		return capability.Encode(out)
	}
}

// invoke runs method on the client for region with a prepared input.
func invoke[C, In, Out, O any](
	ctx context.Context,
	region string,
	resolve func(ctx context.Context, region string) (C, error),
	method func(C, context.Context, *In, ...func(*O)) (*Out, error),
	in *In,
) (*Out, error) {
	client, err := resolve(ctx, region)
	if err != nil {
		return nil, err
	}
	return method(client, ctx, in)
}

// result encodes v as the Payload returned by an Execute.
func result(v any, err error) (capability.Payload, error) {
	if err != nil {
		return nil, err
	}
	return capability.Encode(v)
}

// tagFilter matches resources carrying a tag with one of the listed values.
type tagFilter struct {
	name   string
	values []string
}

func (f tagFilter) match(tags map[string]string) bool {
	v, ok := tags[f.name]
	return ok && slices.Contains(f.values, v)
}

// tagKeys names the payload fields of a tag filter. The resource-specific fields, e.g.
// BucketTagName and BucketTagValues, are read first; TagName and TagValues are
// accepted in their place.
type tagKeys struct {
	name   []string
	values []string
}

func tagsOf(resource string) tagKeys {
	return tagKeys{
		name:   []string{resource + "TagName", "TagName"},
		values: []string{resource + "TagValues", "TagValues"},
	}
}

var (
	backupVaultTags = tagsOf("BackupVault")
	backupPlanTags  = tagsOf("BackupPlan")
	legalHoldTags   = tagsOf("LegalHold")
	bucketTags      = tagsOf("Bucket")
	clusterTags     = tagsOf("Cluster")
	instanceTags    = tagsOf("Instance")
	volumeTags      = tagsOf("Volume")
	snapshotTags    = tagsOf("Snapshot")
)

// Alternative field names of the other lookup parameters.
var (
	regionKeys        = []string{"RegionNames", "Regions"}
	selectionNameKeys = []string{"BackupSelectionName", "SelectionName"}
)

// ref renders keys as a placeholder that resolves to the first field present.
func ref(keys []string) string {
	return "{" + strings.Join(keys, "|") + "}"
}

func (k tagKeys) filter(p capability.Payload) tagFilter {
	return tagFilter{name: p.FirstString(k.name...), values: p.FirstStrings(k.values...)}
}

func (k tagKeys) requirements() []capability.Requirement {
	return []capability.Requirement{
		capability.NeedAny("Tag name is missing. Provide the name of the tag to filter on.", k.name...),
		capability.NeedAny(`Tag values for tag "`+ref(k.name)+`" are missing. Provide them as a comma separated list.`, k.values...),
	}
}

// label describes the filtered listing of what.
func (k tagKeys) label(what string) string {
	return what + ` tagged "` + ref(k.name) + `" with values "` + ref(k.values) + `"`
}

func notFound(code, format string, args ...any) error {
	return capability.NewError(code, fmt.Sprintf(format, args...))
}

// int32Of reads a numeric payload value, as injected page limits are.
func int32Of(p capability.Payload, key string) *int32 {
	s := p.String(key)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return nil
	}
	v := int32(n)
	return &v
}
