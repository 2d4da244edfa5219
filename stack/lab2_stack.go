// Package stack provides the CDK stack for the lab2 data platform: a Redshift
// Serverless warehouse bootstrapped with its schema, and an MWAA environment.
package stack

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsredshiftserverless"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssecretsmanager"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// Lab2StackProps defines the properties for the lab2 stack.
type Lab2StackProps struct {
	awscdk.StackProps
	// Production retains data-bearing resources on stack deletion.
	Production bool
}

// Lab2Stack is the main CDK stack, containing all resources.
type Lab2Stack struct {
	awscdk.Stack
	NamespaceName        string
	WorkgroupName        string
	AdminSecretARN       string
	SQLBucketName        string
	DagsBucketName       string
	SchemaLambdaARN      string
	MwaaEnvironmentName  string
	SchemaCustomResource awscdk.CustomResource
}

// Resources holds the common resources that are shared across different components
type Resources struct {
	Stack         awscdk.Stack
	Vpc           awsec2.IVpc
	RemovalPolicy awscdk.RemovalPolicy
}

// StorageResources holds the S3 buckets
type StorageResources struct {
	SQLBucket  awss3.IBucket
	DagsBucket awss3.IBucket
}

// WarehouseResources holds Redshift Serverless and its admin credentials
type WarehouseResources struct {
	AdminSecret awssecretsmanager.ISecret
	Namespace   awsredshiftserverless.CfnNamespace
	Workgroup   awsredshiftserverless.CfnWorkgroup
}

// NewLab2Stack creates a new CDK stack for lab2.
func NewLab2Stack(scope constructs.Construct, id string, props *Lab2StackProps) *Lab2Stack {
	if props == nil {
		props = &Lab2StackProps{}
	}
	stack := awscdk.NewStack(scope, &id, &props.StackProps)

	resources := &Resources{
		Stack:         stack,
		RemovalPolicy: awscdk.RemovalPolicy_DESTROY,
	}
	if props.Production {
		resources.RemovalPolicy = awscdk.RemovalPolicy_RETAIN
	}

	// Create resources in logical order
	resources.Vpc = createNetworkingResources(resources)
	storage := createStorageResources(resources)
	warehouse := createWarehouseResources(resources)

	schema := NewRedshiftSchema(stack, "RedshiftSchema", &RedshiftSchemaProps{
		WorkgroupName: WorkgroupName,
		DatabaseName:  DatabaseName,
		AdminSecret:   warehouse.AdminSecret,
		SQLBucket:     storage.SQLBucket,
		DependsOn:     []constructs.IDependable{warehouse.Workgroup},
		RemovalPolicy: resources.RemovalPolicy,
	})

	mwaa := NewMwaa(stack, "Mwaa", &MwaaProps{
		Vpc:        resources.Vpc,
		DagsBucket: storage.DagsBucket,
	})

	// Create CloudFormation outputs
	awscdk.NewCfnOutput(stack, jsii.String("RedshiftServerlessNamespaceName"), &awscdk.CfnOutputProps{
		Value:       warehouse.Namespace.NamespaceName(),
		Description: jsii.String("The name of the Redshift Serverless namespace"),
		ExportName:  jsii.String(id + "-Redshift-Namespace-Name"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("RedshiftServerlessWorkgroupName"), &awscdk.CfnOutputProps{
		Value:       warehouse.Workgroup.WorkgroupName(),
		Description: jsii.String("The name of the Redshift Serverless workgroup"),
		ExportName:  jsii.String(id + "-Redshift-Workgroup-Name"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("RedshiftServerlessSecretArn"), &awscdk.CfnOutputProps{
		Value:       warehouse.AdminSecret.SecretArn(),
		Description: jsii.String("The ARN of the secret containing the Redshift Serverless admin user credentials"),
		ExportName:  jsii.String(id + "-Redshift-Admin-Secret-ARN"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("RedshiftSqlBucketName"), &awscdk.CfnOutputProps{
		Value:       storage.SQLBucket.BucketName(),
		Description: jsii.String("Bucket holding the schema script under " + SchemaKeyPrefix),
		ExportName:  jsii.String(id + "-Redshift-Sql-Bucket-Name"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("RedshiftSchemaLambdaArn"), &awscdk.CfnOutputProps{
		Value:       schema.Function.FunctionArn(),
		Description: jsii.String("The schema bootstrap handler"),
		ExportName:  jsii.String(id + "-Redshift-Schema-Lambda-ARN"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("MwaaDagsBucketName"), &awscdk.CfnOutputProps{
		Value:       storage.DagsBucket.BucketName(),
		Description: jsii.String("Bucket MWAA reads DAGs and requirements from"),
		ExportName:  jsii.String(id + "-Mwaa-Dags-Bucket-Name"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("MwaaEnvironmentName"), &awscdk.CfnOutputProps{
		Value:      mwaa.Environment.Name(),
		ExportName: jsii.String(id + "-Mwaa-Environment-Name"),
	})

	fmt.Printf("Redshift Serverless: namespace %s, workgroup %s, database %s\n", NamespaceName, WorkgroupName, DatabaseName)
	fmt.Printf("Redshift schema script: %s/%s\n", SchemaKeyPrefix, SchemaSQLFileName)

	return &Lab2Stack{
		Stack:                stack,
		NamespaceName:        NamespaceName,
		WorkgroupName:        WorkgroupName,
		AdminSecretARN:       *warehouse.AdminSecret.SecretArn(),
		SQLBucketName:        *storage.SQLBucket.BucketName(),
		DagsBucketName:       *storage.DagsBucket.BucketName(),
		SchemaLambdaARN:      *schema.Function.FunctionArn(),
		MwaaEnvironmentName:  MwaaEnvironmentName,
		SchemaCustomResource: schema.Resource,
	}
}

// createNetworkingResources creates the VPC MWAA runs in. There is no NAT
// gateway; the isolated subnets reach AWS services through VPC endpoints.
func createNetworkingResources(resources *Resources) awsec2.IVpc {
	vpc := awsec2.NewVpc(resources.Stack, jsii.String("Lab2Vpc"), &awsec2.VpcProps{
		MaxAzs:      jsii.Number(2),
		NatGateways: jsii.Number(0),
		SubnetConfiguration: &[]*awsec2.SubnetConfiguration{
			{
				CidrMask:   jsii.Number(24),
				Name:       jsii.String("Public"),
				SubnetType: awsec2.SubnetType_PUBLIC,
			},
			{
				CidrMask:   jsii.Number(24),
				Name:       jsii.String("Isolated"),
				SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED,
			},
		},
	})
	awscdk.Tags_Of(vpc).Add(jsii.String(DefaultResourceTagKey), jsii.String(DefaultResourceTagValue), nil)
	vpc.ApplyRemovalPolicy(awscdk.RemovalPolicy_DESTROY)

	return vpc
}

// createStorageResources creates the SQL script bucket and the MWAA source bucket
func createStorageResources(resources *Resources) *StorageResources {
	autoDelete := jsii.Bool(resources.RemovalPolicy == awscdk.RemovalPolicy_DESTROY)

	sqlBucket := awss3.NewBucket(resources.Stack, jsii.String("RedshiftSqlBucket"), &awss3.BucketProps{
		RemovalPolicy:     resources.RemovalPolicy,
		AutoDeleteObjects: autoDelete,
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
		EnforceSSL:        jsii.Bool(true),
	})
	awscdk.Tags_Of(sqlBucket).Add(jsii.String(DefaultResourceTagKey), jsii.String(DefaultResourceTagValue), nil)

	// MWAA requires a versioned bucket with public access blocked.
	dagsBucket := awss3.NewBucket(resources.Stack, jsii.String("MwaaDagsBucket"), &awss3.BucketProps{
		RemovalPolicy:     resources.RemovalPolicy,
		AutoDeleteObjects: autoDelete,
		Versioned:         jsii.Bool(true),
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
		EnforceSSL:        jsii.Bool(true),
	})
	awscdk.Tags_Of(dagsBucket).Add(jsii.String(DefaultResourceTagKey), jsii.String(DefaultResourceTagValue), nil)

	return &StorageResources{
		SQLBucket:  sqlBucket,
		DagsBucket: dagsBucket,
	}
}

// createWarehouseResources creates the admin secret, namespace and workgroup
func createWarehouseResources(resources *Resources) *WarehouseResources {
	adminSecret := awssecretsmanager.NewSecret(resources.Stack, jsii.String("RedshiftServerlessAdminUserSecret"), &awssecretsmanager.SecretProps{
		SecretName: jsii.String(AdminSecretName),
		GenerateSecretString: &awssecretsmanager.SecretStringGenerator{
			SecretStringTemplate: jsii.String(fmt.Sprintf(`{"username":"%s"}`, AdminUsername)),
			GenerateStringKey:    jsii.String("password"),
			ExcludePunctuation:   jsii.Bool(true),
			IncludeSpace:         jsii.Bool(false),
			PasswordLength:       jsii.Number(AdminPasswordLength),
		},
		RemovalPolicy: resources.RemovalPolicy,
	})
	awscdk.Tags_Of(adminSecret).Add(jsii.String(DefaultResourceTagKey), jsii.String(DefaultResourceTagValue), nil)

	namespace := awsredshiftserverless.NewCfnNamespace(resources.Stack, jsii.String("RedshiftServerlessNamespace"), &awsredshiftserverless.CfnNamespaceProps{
		NamespaceName:     jsii.String(NamespaceName),
		AdminUsername:     jsii.String(AdminUsername),
		AdminUserPassword: adminSecret.SecretValueFromJson(jsii.String("password")).UnsafeUnwrap(),
		DbName:            jsii.String(DatabaseName),
		LogExports:        jsii.Strings("userlog", "connectionlog", "useractivitylog"),
	})
	awscdk.Tags_Of(namespace).Add(jsii.String(DefaultResourceTagKey), jsii.String(DefaultResourceTagValue), nil)
	namespace.ApplyRemovalPolicy(resources.RemovalPolicy, nil)

	workgroup := awsredshiftserverless.NewCfnWorkgroup(resources.Stack, jsii.String("RedshiftServerlessWorkgroup"), &awsredshiftserverless.CfnWorkgroupProps{
		WorkgroupName:      jsii.String(WorkgroupName),
		NamespaceName:      namespace.NamespaceName(),
		BaseCapacity:       jsii.Number(WorkgroupBaseRPU),
		EnhancedVpcRouting: jsii.Bool(false),
		PubliclyAccessible: jsii.Bool(false),
	})
	awscdk.Tags_Of(workgroup).Add(jsii.String(DefaultResourceTagKey), jsii.String(DefaultResourceTagValue), nil)
	workgroup.ApplyRemovalPolicy(resources.RemovalPolicy, nil)

	// namespaceName is a plain string, so the ordering has to be explicit.
	workgroup.AddDependency(namespace)

	return &WarehouseResources{
		AdminSecret: adminSecret,
		Namespace:   namespace,
		Workgroup:   workgroup,
	}
}
