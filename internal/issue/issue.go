// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	ConfigExistsId
	ServerBinaryNotFoundId
	ServerExitedId
	PacksNeedReviewId
	RegistryWriteFailedId
	AddonsNotSettlingId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
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
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load addonsync.toml!

The configuration file exists but could not be read or contains invalid values.

## Things you can try:
- Print the configuration addonsync would use:
~~~
$ addonsync config show
~~~

- Check the TOML syntax (strings need quotes, tables use ` + "`[section]`" + `)
- Remove the file to fall back to the defaults

## Example:
~~~toml
server_dir = "."
addons_dir = "addons"

[server]
command = "./bedrock_server"
~~~`,
	}

	configExistsIssue = &Issue{
		id: ConfigExistsId,
		mdMsg: `
# Configuration already exists!

` + "`addonsync config init`" + ` never overwrites an existing file.

## Things you can try:
- Edit the existing addonsync.toml
- Delete it and run ` + "`addonsync config init`" + ` again
- Write the defaults somewhere else:
~~~
$ addonsync config init --config /tmp/addonsync.toml
~~~`,
	}

	serverBinaryNotFoundIssue = &Issue{
		id: ServerBinaryNotFoundId,
		mdMsg: `
# Server executable not found!

The addons were synchronized but the Bedrock dedicated server could not be started.

## Things you can try:
- Run addonsync from the directory that contains ` + "`bedrock_server`" + `
- Point it at the server directory:
~~~
$ addonsync --server-dir /opt/bedrock
~~~

- Or change the command in addonsync.toml:
~~~toml
[server]
command = "LD_LIBRARY_PATH=. ./bedrock_server"
~~~`,
		extLinks: []HttpLink{"https://www.minecraft.net/en-us/download/server/bedrock"},
	}

	serverExitedIssue = &Issue{
		id: ServerExitedId,
		mdMsg: `
# The server stopped with an error!

Addon synchronization had already finished, so the world and its registries are
consistent. The failure comes from the server itself.

## Things you can try:
- Read the server output above for the cause
- Start the server by hand to reproduce it
- Run ` + "`addonsync sync`" + ` alone to confirm the addons are fine`,
	}

	packsNeedReviewIssue = &Issue{
		id: PacksNeedReviewId,
		mdMsg: `
# Some packs need manual review

These folders were left exactly where they are:
- a ` + "`manifest.json`" + ` that is not valid JSON
- a manifest without ` + "`header.uuid`" + ` or ` + "`header.version`" + `
- a first module whose type is not ` + "`data`" + `, ` + "`script`" + ` or ` + "`resources`" + `
- a bundle file that is not a ZIP archive

## Things you can try:
- Fix or replace the listed files, then run ` + "`addonsync sync`" + ` again
- Delete anything you do not want installed`,
	}

	registryWriteFailedIssue = &Issue{
		id: RegistryWriteFailedId,
		mdMsg: `
# Registry could not be written!

A pack was not installed because its world registry file could not be saved.
Nothing was moved, so the next run will try again.

## Things you can try:
- Check free disk space
- Make sure ` + "`world_behavior_packs.json`" + ` and ` + "`world_resource_packs.json`" + ` are regular, writable files`,
	}

	addonsNotSettlingIssue = &Issue{
		id: AddonsNotSettlingId,
		mdMsg: `
# The addons directory keeps changing!

Unpacking did not reach a stable state. Another program is probably writing
into the addons directory while addonsync runs.

## Things you can try:
- Wait until uploads or copies have finished
- Use ` + "`addonsync watch`" + `, which waits for the directory to go quiet`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

addonsync could not change a file in the server directory.

## Things you can try:
- Run addonsync as the user that owns the server files
- Check ownership of ` + "`worlds/`" + ` and ` + "`addons/`" + `:
~~~
$ ls -la worlds addons
~~~`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		configExistsIssue.Id():         configExistsIssue,
		serverBinaryNotFoundIssue.Id(): serverBinaryNotFoundIssue,
		serverExitedIssue.Id():         serverExitedIssue,
		packsNeedReviewIssue.Id():      packsNeedReviewIssue,
		registryWriteFailedIssue.Id():  registryWriteFailedIssue,
		addonsNotSettlingIssue.Id():    addonsNotSettlingIssue,
		permissionDeniedIssue.Id():     permissionDeniedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
