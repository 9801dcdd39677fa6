// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	WorkerNotFoundId Id = iota + 1
	WorkerIsDirectoryId
	ClassificationFailedId
	BundleFailedId
	GeneratedSyntaxId
	DeployConfigInvalidId
	AdapterBundleNotFoundId
	AlreadyPatchedId
	ConfigLoadFailedId
	AdapterCommandFailedId
	DevCommandFailedId
	PluginCycleId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // worker runtime documentation relevant to the issue
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	workerNotFoundIssue = &Issue{
		id: WorkerNotFoundId,
		mdMsg: `
# Worker source not found

No worker module exists at the configured path. Without one, the dev server
serves static assets only and builds leave the adapter bundle untouched.

## Things you can try
- Create the default worker:
~~~
$ mkdir -p src && touch src/worker.ts
~~~
- Or point the configuration at an existing module:
~~~cue
worker: "src/edge/worker.ts"
~~~`,
	}

	workerIsDirectoryIssue = &Issue{
		id: WorkerIsDirectoryId,
		mdMsg: `
# Worker path is a directory

The configured worker path names a directory. It must name a single module
file such as ` + "`src/worker.ts`" + `.

## Things you can try
- Point ` + "`worker`" + ` at the module file inside that directory.
- Remove the ` + "`worker`" + ` setting to use the default ` + "`src/worker.ts`" + `.`,
	}

	classificationFailedIssue = &Issue{
		id: ClassificationFailedId,
		mdMsg: `
# Failed to read the worker's exports

The worker module could not be bundled to discover what it exports. This is
almost always a syntax error or an unresolved import in the worker or in a
module it re-exports.

## Things you can try
- Inspect the exports directly:
~~~
$ workerstitch classify --verbose
~~~
- Mark runtime-provided modules as external:
~~~cue
bundler: externals: ["cloudflare:*", "node:*"]
~~~`,
		extLinks: []HttpLink{"https://esbuild.github.io/api/#external"},
	}

	bundleFailedIssue = &Issue{
		id: BundleFailedId,
		mdMsg: `
# Failed to bundle the worker artifact

The worker compiled for classification but producing the standalone worker
artifact failed. The adapter bundle was not modified.

## Things you can try
- Rerun with ` + "`--verbose`" + ` to see every bundler diagnostic.
- Check that imports which only exist at runtime are listed in
  ` + "`bundler.externals`" + `.`,
		extLinks: []HttpLink{"https://esbuild.github.io/api/#build"},
	}

	generatedSyntaxIssue = &Issue{
		id: GeneratedSyntaxId,
		mdMsg: `
# Generated code is not valid JavaScript

The code generated to stitch the worker into the bundle failed to parse. This
points to an export name the generator could not express. The output was not
written.

## Things you can try
- Rename unusual exports in the worker to plain identifiers.
- Report the problem together with the output of:
~~~
$ workerstitch classify --json
~~~`,
	}

	deployConfigInvalidIssue = &Issue{
		id: DeployConfigInvalidId,
		mdMsg: `
# Deployment configuration could not be read

The wrangler configuration file exists but could not be parsed.

## Things you can try
- Check the file for syntax errors. JSONC files may contain comments and
  trailing commas, TOML files must be valid TOML 1.0.
- Pass the file explicitly if it is not in the project root:
~~~cue
deploy_config: "deploy/wrangler.jsonc"
~~~`,
		docLinks: []HttpLink{"https://developers.cloudflare.com/workers/wrangler/configuration/"},
	}

	adapterBundleNotFoundIssue = &Issue{
		id: AdapterBundleNotFoundId,
		mdMsg: `
# Adapter bundle not found

The build finished without producing the server bundle that the worker is
stitched into. Nothing was patched.

## Things you can try
- Make sure the adapter build ran and wrote its output.
- Set ` + "`main`" + ` in the wrangler configuration, or configure the fallback:
~~~cue
default_bundle: "dist/server/index.js"
~~~`,
	}

	alreadyPatchedIssue = &Issue{
		id: AlreadyPatchedId,
		mdMsg: `
# Bundle already patched

The adapter bundle already contains the stitched worker, so it was left
unchanged. Rebuild with the adapter to patch a fresh bundle.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

The workerstitch configuration file could not be loaded or failed schema
validation.

## Things you can try
- Show the effective configuration and where it came from:
~~~
$ workerstitch config show
~~~
- Recreate a default configuration file:
~~~
$ workerstitch config init --force
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/tour/"},
	}

	adapterCommandFailedIssue = &Issue{
		id: AdapterCommandFailedId,
		mdMsg: `
# Adapter build command failed

The command that builds the adapter bundle exited with an error, so the
worker was not stitched.

## Things you can try
- Run the command on its own to see its full output.
- Skip it when the bundle is produced elsewhere:
~~~
$ workerstitch build --skip-adapter
~~~`,
	}

	devCommandFailedIssue = &Issue{
		id: DevCommandFailedId,
		mdMsg: `
# Dev runtime exited with an error

The local worker runtime stopped unexpectedly. The generated entry and
runtime configuration are still in place.

## Things you can try
- Start the runtime yourself with the generated configuration:
~~~
$ workerstitch dev --no-start
~~~
- Change the command it runs:
~~~cue
dev: command: "npx wrangler dev --config \"$WORKERSTITCH_DEV_CONFIG\""
~~~`,
		docLinks: []HttpLink{"https://developers.cloudflare.com/workers/wrangler/commands/#dev"},
	}

	pluginCycleIssue = &Issue{
		id: PluginCycleId,
		mdMsg: `
# Plugin ordering cycle

Two or more build plugins declare that they must run after each other. The
pipeline cannot pick an order and refused to run.`,
	}

	issues = map[Id]*Issue{
		workerNotFoundIssue.Id():        workerNotFoundIssue,
		workerIsDirectoryIssue.Id():     workerIsDirectoryIssue,
		classificationFailedIssue.Id():  classificationFailedIssue,
		bundleFailedIssue.Id():          bundleFailedIssue,
		generatedSyntaxIssue.Id():       generatedSyntaxIssue,
		deployConfigInvalidIssue.Id():   deployConfigInvalidIssue,
		adapterBundleNotFoundIssue.Id(): adapterBundleNotFoundIssue,
		alreadyPatchedIssue.Id():        alreadyPatchedIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		adapterCommandFailedIssue.Id():  adapterCommandFailedIssue,
		devCommandFailedIssue.Id():      devCommandFailedIssue,
		pluginCycleIssue.Id():           pluginCycleIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
