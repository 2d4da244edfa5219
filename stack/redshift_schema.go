package stack

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3assets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3deployment"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssecretsmanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/customresources"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// lambdaBuildImage compiles the schema Lambda during asset bundling.
const lambdaBuildImage = "public.ecr.aws/docker/library/golang:1.24"

// RedshiftSchemaProps configures the schema bootstrap custom resource.
type RedshiftSchemaProps struct {
	WorkgroupName string
	DatabaseName  string
	AdminSecret   awssecretsmanager.ISecret
	// SQLAssetDir is the local directory deployed under KeyPrefix. Defaults
	// to assets/redshift-sql.
	SQLAssetDir string
	// SQLBucket receives the script. A bucket is created when nil.
	SQLBucket   awss3.IBucket
	KeyPrefix   string
	SQLFileName string
	// DependsOn is added as a dependency of the custom resource, typically
	// the workgroup.
	DependsOn []constructs.IDependable
	// RemovalPolicy applies to the created bucket.
	RemovalPolicy awscdk.RemovalPolicy
}

// RedshiftSchema runs the SQL script against the workgroup on every create
// and update of the stack.
type RedshiftSchema struct {
	constructs.Construct
	Bucket     awss3.IBucket
	Deployment awss3deployment.BucketDeployment
	Function   awslambda.Function
	Provider   customresources.Provider
	Resource   awscdk.CustomResource
	SQLHash    *string
}

// NewRedshiftSchema creates the script deployment, the handler Lambda and the
// Custom::RedshiftSchema resource.
func NewRedshiftSchema(scope constructs.Construct, id string, props *RedshiftSchemaProps) *RedshiftSchema {
	construct := constructs.NewConstruct(scope, &id)

	p := withSchemaDefaults(*props)

	bucket := p.SQLBucket
	if bucket == nil {
		created := awss3.NewBucket(construct, jsii.String("SqlBucket"), &awss3.BucketProps{
			RemovalPolicy:     p.RemovalPolicy,
			AutoDeleteObjects: jsii.Bool(p.RemovalPolicy == awscdk.RemovalPolicy_DESTROY),
			BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
			EnforceSSL:        jsii.Bool(true),
		})
		awscdk.Tags_Of(created).Add(jsii.String(DefaultResourceTagKey), jsii.String(DefaultResourceTagValue), nil)
		bucket = created
	}

	// Deploy the SQL file; prune is off so other objects under the prefix
	// survive.
	deployment := awss3deployment.NewBucketDeployment(construct, jsii.String("DeployRedshiftSchemaSql"), &awss3deployment.BucketDeploymentProps{
		Sources:              &[]awss3deployment.ISource{awss3deployment.Source_Asset(jsii.String(p.SQLAssetDir), nil)},
		DestinationBucket:    bucket,
		DestinationKeyPrefix: jsii.String(p.KeyPrefix),
		Prune:                jsii.Bool(false),
	})

	fn := createSchemaLambda(construct, &p, bucket)

	provider := customresources.NewProvider(construct, jsii.String("RedshiftSchemaProvider"), &customresources.ProviderProps{
		OnEventHandler: fn,
	})

	sqlHash := awscdk.FileSystem_Fingerprint(jsii.String(p.SQLAssetDir), nil)

	resource := awscdk.NewCustomResource(construct, jsii.String("RedshiftSchemaResource"), &awscdk.CustomResourceProps{
		ServiceToken: provider.ServiceToken(),
		ResourceType: jsii.String(SchemaResourceType),
		Properties: &map[string]interface{}{
			"workgroupName":  p.WorkgroupName,
			"databaseName":   p.DatabaseName,
			"adminSecretArn": p.AdminSecret.SecretArn(),
			"s3BucketName":   bucket.BucketName(),
			"s3KeyPrefix":    p.KeyPrefix,
			"sqlFileName":    p.SQLFileName,
			// A changed script changes the properties, which triggers an
			// Update event.
			"sqlHash": sqlHash,
		},
	})

	// The script has to be in the bucket before the handler runs.
	resource.Node().AddDependency(deployment)
	for _, dep := range p.DependsOn {
		resource.Node().AddDependency(dep)
	}

	return &RedshiftSchema{
		Construct:  construct,
		Bucket:     bucket,
		Deployment: deployment,
		Function:   fn,
		Provider:   provider,
		Resource:   resource,
		SQLHash:    sqlHash,
	}
}

func withSchemaDefaults(p RedshiftSchemaProps) RedshiftSchemaProps {
	if p.SQLAssetDir == "" {
		p.SQLAssetDir = assetDir("redshift-sql")
	}
	if p.KeyPrefix == "" {
		p.KeyPrefix = SchemaKeyPrefix
	}
	if p.SQLFileName == "" {
		p.SQLFileName = SchemaSQLFileName
	}
	if p.RemovalPolicy == "" {
		p.RemovalPolicy = awscdk.RemovalPolicy_DESTROY
	}
	return p
}

// createSchemaLambda builds the Go handler from this module and grants it
// what the bootstrap needs.
func createSchemaLambda(scope constructs.Construct, p *RedshiftSchemaProps, bucket awss3.IBucket) awslambda.Function {
	fn := awslambda.NewFunction(scope, jsii.String("RedshiftSchemaLambda"), &awslambda.FunctionProps{
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Architecture: awslambda.Architecture_ARM_64(),
		Handler:      jsii.String("bootstrap"),
		Code: awslambda.AssetCode_FromAsset(jsii.String(moduleRoot()), &awss3assets.AssetOptions{
			Exclude: jsii.Strings(
				"cdk.out", "_examples", ".git", "assets", "stack", "cmd",
				"main.go", "*.md", "**/*_test.go",
			),
			Bundling: &awscdk.BundlingOptions{
				Image: awscdk.DockerImage_FromRegistry(jsii.String(lambdaBuildImage)),
				Command: jsii.Strings(
					"bash", "-c",
					"go build -mod=mod -tags lambda.norpc -trimpath -ldflags='-s -w' -o /asset-output/bootstrap ./redshift_schema_lambda",
				),
				Environment: &map[string]*string{
					"GOOS":        jsii.String("linux"),
					"GOARCH":      jsii.String("arm64"),
					"CGO_ENABLED": jsii.String("0"),
					"GOCACHE":     jsii.String("/tmp/go-cache"),
					"GOPATH":      jsii.String("/tmp/go"),
				},
				User: jsii.String("root"),
			},
		}),
		Timeout:    awscdk.Duration_Minutes(jsii.Number(15)),
		MemorySize: jsii.Number(256),
		Environment: &map[string]*string{
			"WORKGROUP_NAME":   jsii.String(p.WorkgroupName),
			"DATABASE_NAME":    jsii.String(p.DatabaseName),
			"ADMIN_SECRET_ARN": p.AdminSecret.SecretArn(),
			"S3_BUCKET_NAME":   bucket.BucketName(),
			"S3_KEY_PREFIX":    jsii.String(p.KeyPrefix),
			"SQL_FILE_NAME":    jsii.String(p.SQLFileName),
			"LOG_FORMAT":       jsii.String("json"),
		},
		Description: jsii.String("Applies the Redshift schema script through the Data API"),
	})
	awscdk.Tags_Of(fn).Add(jsii.String(DefaultResourceTagKey), jsii.String(DefaultResourceTagValue), nil)
	fn.ApplyRemovalPolicy(awscdk.RemovalPolicy_DESTROY)

	setupSchemaLambdaPermissions(fn, p.AdminSecret, bucket)
	return fn
}

// setupSchemaLambdaPermissions configures IAM permissions for the schema lambda
func setupSchemaLambdaPermissions(fn awslambda.Function, secret awssecretsmanager.ISecret, bucket awss3.IBucket) {
	// Data API statement ids are not resource scoped.
	fn.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions: jsii.Strings(
			"redshift-data:ExecuteStatement",
			"redshift-data:BatchExecuteStatement",
			"redshift-data:DescribeStatement",
			"redshift-data:GetStatementResult",
			"redshift-data:CancelStatement",
		),
		Resources: jsii.Strings("*"),
	}))

	fn.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions:   jsii.Strings("redshift-serverless:GetCredentials"),
		Resources: jsii.Strings("*"),
	}))

	secret.GrantRead(fn, nil)
	bucket.GrantRead(fn, nil)
}
