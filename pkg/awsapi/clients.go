package awsapi

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/backup"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// BackupAPI is the part of the AWS Backup client the operations use.
type BackupAPI interface {
	CreateBackupVault(ctx context.Context, in *backup.CreateBackupVaultInput, optFns ...func(*backup.Options)) (*backup.CreateBackupVaultOutput, error)
	CreateLogicallyAirGappedBackupVault(ctx context.Context, in *backup.CreateLogicallyAirGappedBackupVaultInput, optFns ...func(*backup.Options)) (*backup.CreateLogicallyAirGappedBackupVaultOutput, error)
	DescribeBackupVault(ctx context.Context, in *backup.DescribeBackupVaultInput, optFns ...func(*backup.Options)) (*backup.DescribeBackupVaultOutput, error)
	DeleteBackupVault(ctx context.Context, in *backup.DeleteBackupVaultInput, optFns ...func(*backup.Options)) (*backup.DeleteBackupVaultOutput, error)
	ListBackupVaults(ctx context.Context, in *backup.ListBackupVaultsInput, optFns ...func(*backup.Options)) (*backup.ListBackupVaultsOutput, error)

	CreateBackupPlan(ctx context.Context, in *backup.CreateBackupPlanInput, optFns ...func(*backup.Options)) (*backup.CreateBackupPlanOutput, error)
	UpdateBackupPlan(ctx context.Context, in *backup.UpdateBackupPlanInput, optFns ...func(*backup.Options)) (*backup.UpdateBackupPlanOutput, error)
	GetBackupPlan(ctx context.Context, in *backup.GetBackupPlanInput, optFns ...func(*backup.Options)) (*backup.GetBackupPlanOutput, error)
	ListBackupPlans(ctx context.Context, in *backup.ListBackupPlansInput, optFns ...func(*backup.Options)) (*backup.ListBackupPlansOutput, error)
	DeleteBackupPlan(ctx context.Context, in *backup.DeleteBackupPlanInput, optFns ...func(*backup.Options)) (*backup.DeleteBackupPlanOutput, error)

	CreateBackupSelection(ctx context.Context, in *backup.CreateBackupSelectionInput, optFns ...func(*backup.Options)) (*backup.CreateBackupSelectionOutput, error)
	GetBackupSelection(ctx context.Context, in *backup.GetBackupSelectionInput, optFns ...func(*backup.Options)) (*backup.GetBackupSelectionOutput, error)
	ListBackupSelections(ctx context.Context, in *backup.ListBackupSelectionsInput, optFns ...func(*backup.Options)) (*backup.ListBackupSelectionsOutput, error)
	DeleteBackupSelection(ctx context.Context, in *backup.DeleteBackupSelectionInput, optFns ...func(*backup.Options)) (*backup.DeleteBackupSelectionOutput, error)

	ListProtectedResources(ctx context.Context, in *backup.ListProtectedResourcesInput, optFns ...func(*backup.Options)) (*backup.ListProtectedResourcesOutput, error)
	ListProtectedResourcesByBackupVault(ctx context.Context, in *backup.ListProtectedResourcesByBackupVaultInput, optFns ...func(*backup.Options)) (*backup.ListProtectedResourcesByBackupVaultOutput, error)
	ListBackupJobs(ctx context.Context, in *backup.ListBackupJobsInput, optFns ...func(*backup.Options)) (*backup.ListBackupJobsOutput, error)

	CreateLegalHold(ctx context.Context, in *backup.CreateLegalHoldInput, optFns ...func(*backup.Options)) (*backup.CreateLegalHoldOutput, error)
	GetLegalHold(ctx context.Context, in *backup.GetLegalHoldInput, optFns ...func(*backup.Options)) (*backup.GetLegalHoldOutput, error)
	ListLegalHolds(ctx context.Context, in *backup.ListLegalHoldsInput, optFns ...func(*backup.Options)) (*backup.ListLegalHoldsOutput, error)
	CancelLegalHold(ctx context.Context, in *backup.CancelLegalHoldInput, optFns ...func(*backup.Options)) (*backup.CancelLegalHoldOutput, error)

	ListRecoveryPointsByBackupVault(ctx context.Context, in *backup.ListRecoveryPointsByBackupVaultInput, optFns ...func(*backup.Options)) (*backup.ListRecoveryPointsByBackupVaultOutput, error)
	ListRecoveryPointsByLegalHold(ctx context.Context, in *backup.ListRecoveryPointsByLegalHoldInput, optFns ...func(*backup.Options)) (*backup.ListRecoveryPointsByLegalHoldOutput, error)
	ListRecoveryPointsByResource(ctx context.Context, in *backup.ListRecoveryPointsByResourceInput, optFns ...func(*backup.Options)) (*backup.ListRecoveryPointsByResourceOutput, error)

	ListTags(ctx context.Context, in *backup.ListTagsInput, optFns ...func(*backup.Options)) (*backup.ListTagsOutput, error)
}

// S3API is the part of the S3 client the operations use.
type S3API interface {
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, in *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketTagging(ctx context.Context, in *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
	GetBucketVersioning(ctx context.Context, in *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
	GetBucketReplication(ctx context.Context, in *s3.GetBucketReplicationInput, optFns ...func(*s3.Options)) (*s3.GetBucketReplicationOutput, error)
	GetBucketLifecycleConfiguration(ctx context.Context, in *s3.GetBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLifecycleConfigurationOutput, error)
}

// RDSAPI is the part of the RDS client the operations use.
type RDSAPI interface {
	DescribeDBClusters(ctx context.Context, in *rds.DescribeDBClustersInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClustersOutput, error)
	DescribeDBInstances(ctx context.Context, in *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	DescribeDBClusterAutomatedBackups(ctx context.Context, in *rds.DescribeDBClusterAutomatedBackupsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClusterAutomatedBackupsOutput, error)
	DescribeDBInstanceAutomatedBackups(ctx context.Context, in *rds.DescribeDBInstanceAutomatedBackupsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstanceAutomatedBackupsOutput, error)
	StartDBInstanceAutomatedBackupsReplication(ctx context.Context, in *rds.StartDBInstanceAutomatedBackupsReplicationInput, optFns ...func(*rds.Options)) (*rds.StartDBInstanceAutomatedBackupsReplicationOutput, error)
	StopDBInstanceAutomatedBackupsReplication(ctx context.Context, in *rds.StopDBInstanceAutomatedBackupsReplicationInput, optFns ...func(*rds.Options)) (*rds.StopDBInstanceAutomatedBackupsReplicationOutput, error)
	DeleteDBClusterAutomatedBackup(ctx context.Context, in *rds.DeleteDBClusterAutomatedBackupInput, optFns ...func(*rds.Options)) (*rds.DeleteDBClusterAutomatedBackupOutput, error)
	DeleteDBInstanceAutomatedBackup(ctx context.Context, in *rds.DeleteDBInstanceAutomatedBackupInput, optFns ...func(*rds.Options)) (*rds.DeleteDBInstanceAutomatedBackupOutput, error)
}

// EC2API is the part of the EC2 client the operations use.
type EC2API interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeVolumes(ctx context.Context, in *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	DescribeSnapshots(ctx context.Context, in *ec2.DescribeSnapshotsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error)
	CreateSnapshot(ctx context.Context, in *ec2.CreateSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.CreateSnapshotOutput, error)
	DeleteSnapshot(ctx context.Context, in *ec2.DeleteSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSnapshotOutput, error)
}

// STSAPI resolves the caller identity.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}
